// Package pipeline runs a crawl as a sequence of steps over a model.Run.
//
// The default sequence is:
//
//	crawl -> aggregate -> sink -> history -> report
//
// The crawl step walks every source through a SourceRunner, sequentially
// with a pause between sources or concurrently with errgroup. Later steps
// only read what earlier steps stored in the Run; no step shares mutable
// state with another.
//
// Steps marked as final (aggregate, sink, history, report) still run after
// the context is cancelled, so an interrupted crawl writes whatever it
// gathered before the interruption.
package pipeline
