package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// ErrEmptySelector is returned when a SelectorExtractor is built without a selector.
var ErrEmptySelector = errors.New("selector must not be empty")

// Extractor parses a page body into the item names it lists, in page order.
// An empty result with a nil error means the page lists no items.
type Extractor interface {
	Extract(body string) ([]string, error)
}

// Func adapts an ordinary function to the Extractor interface.
type Func func(body string) ([]string, error)

// Extract calls fn(body).
func (fn Func) Extract(body string) ([]string, error) {
	return fn(body)
}

// SelectorExtractor extracts the text content of every element matching a
// CSS selector, e.g. "h2.truncate-text" for product title headings.
type SelectorExtractor struct {
	selector string
	matcher  cascadia.Selector
}

// NewSelectorExtractor compiles selector and returns an extractor using it.
func NewSelectorExtractor(selector string) (*SelectorExtractor, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, ErrEmptySelector
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return &SelectorExtractor{selector: selector, matcher: sel}, nil
}

// Selector returns the CSS selector this extractor matches.
func (e *SelectorExtractor) Selector() string {
	return e.selector
}

// Extract returns the normalized text of each matching element in document
// order. Whitespace runs collapse to a single space; elements without text
// are skipped.
func (e *SelectorExtractor) Extract(body string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	names := make([]string, 0)
	doc.FindMatcher(e.matcher).Each(func(_ int, s *goquery.Selection) {
		if name := normalizeText(s.Text()); name != "" {
			names = append(names, name)
		}
	})
	return names, nil
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
