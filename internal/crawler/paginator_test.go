package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/catalogscan/internal/extract"
	"github.com/nao1215/catalogscan/internal/fetcher"
	"github.com/nao1215/catalogscan/internal/model"
)

const testSource = "https://shop.example.com/colecao/1"

// lineExtractor treats every non-empty line of the body as one item.
var lineExtractor = extract.Func(func(body string) ([]string, error) {
	if body == "" {
		return []string{}, nil
	}
	return strings.Split(body, "\n"), nil
})

type fakeResponse struct {
	body string
	err  error
}

// sequenceFetcher answers calls in order, returning empty bodies once the
// sequence is exhausted.
type sequenceFetcher struct {
	mu        sync.Mutex
	responses []fakeResponse
	urls      []string
}

func (f *sequenceFetcher) Fetch(_ context.Context, pageURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.urls)
	f.urls = append(f.urls, pageURL)
	if i >= len(f.responses) {
		return "", nil
	}
	return f.responses[i].body, f.responses[i].err
}

func (f *sequenceFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

// pageFetcher serves pages by their page parameter, re-serving the last
// page for any page number past the end.
type pageFetcher struct {
	mu    sync.Mutex
	pages [][]string
	calls int
}

func (f *pageFetcher) Fetch(_ context.Context, pageURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	idx := 0
	if p := u.Query().Get(PageParam); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", err
		}
		idx = n - 1
	}
	if len(f.pages) == 0 {
		return "", nil
	}
	idx = min(idx, len(f.pages)-1)
	return strings.Join(f.pages[idx], "\n"), nil
}

// recordingSleeper records requested waits without sleeping.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func timeoutError(u string) error {
	return &fetcher.FetchError{URL: u, Err: context.DeadlineExceeded}
}

func TestPaginator_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		responses   []fakeResponse
		retry       RetryPolicy
		wantItems   []string
		wantFetches int
		wantCalls   int
		wantReason  model.StopReason
	}{
		{
			name: "pages until an empty page",
			responses: []fakeResponse{
				{body: "Milk\nBread"},
				{body: "Eggs"},
				{body: ""},
			},
			retry:       NoRetry(),
			wantItems:   []string{"Milk", "Bread", "Eggs"},
			wantFetches: 3,
			wantCalls:   3,
			wantReason:  model.StopEmptyPage,
		},
		{
			name: "stops on a repeated page",
			responses: []fakeResponse{
				{body: "Milk"},
				{body: "Milk"},
				{body: "Never fetched"},
			},
			retry:       NoRetry(),
			wantItems:   []string{"Milk"},
			wantFetches: 2,
			wantCalls:   2,
			wantReason:  model.StopDuplicatePage,
		},
		{
			name: "first fetch times out",
			responses: []fakeResponse{
				{err: timeoutError(testSource)},
			},
			retry:       NoRetry(),
			wantItems:   []string{},
			wantFetches: 1,
			wantCalls:   1,
			wantReason:  model.StopFetchFailed,
		},
		{
			name: "items before a failing page are kept",
			responses: []fakeResponse{
				{body: "Milk"},
				{err: timeoutError(testSource)},
				{err: timeoutError(testSource)},
			},
			retry:       RetryPolicy{MaxAttempts: 2, Base: time.Second},
			wantItems:   []string{"Milk"},
			wantFetches: 2,
			wantCalls:   3,
			wantReason:  model.StopFetchFailed,
		},
		{
			name: "transient failure is retried",
			responses: []fakeResponse{
				{err: timeoutError(testSource)},
				{body: "Milk"},
				{body: ""},
			},
			retry:       DefaultRetryPolicy(),
			wantItems:   []string{"Milk"},
			wantFetches: 2,
			wantCalls:   3,
			wantReason:  model.StopEmptyPage,
		},
		{
			name: "same item on different pages is kept per source",
			responses: []fakeResponse{
				{body: "Milk\nBread"},
				{body: "Bread\nJuice"},
			},
			retry:       NoRetry(),
			wantItems:   []string{"Milk", "Bread", "Bread", "Juice"},
			wantFetches: 3,
			wantCalls:   3,
			wantReason:  model.StopEmptyPage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := &sequenceFetcher{responses: tt.responses}
			p := NewPaginator(f, lineExtractor, WithSleeper(NoDelay{}), WithRetryPolicy(tt.retry))

			result := p.Crawl(context.Background(), testSource)

			if result.Items == nil {
				t.Fatal("Items must not be nil")
			}
			if !slices.Equal(result.Items, tt.wantItems) {
				t.Errorf("Items = %q, want %q", result.Items, tt.wantItems)
			}
			if result.Fetches != tt.wantFetches {
				t.Errorf("Fetches = %d, want %d", result.Fetches, tt.wantFetches)
			}
			if got := f.calls(); got != tt.wantCalls {
				t.Errorf("fetcher calls = %d, want %d", got, tt.wantCalls)
			}
			if result.Attempts != tt.wantCalls {
				t.Errorf("Attempts = %d, want %d", result.Attempts, tt.wantCalls)
			}
			if result.StopReason != tt.wantReason {
				t.Errorf("StopReason = %q, want %q", result.StopReason, tt.wantReason)
			}
			if len(result.Pages) != result.Fetches {
				t.Errorf("len(Pages) = %d, want one record per fetch (%d)", len(result.Pages), result.Fetches)
			}
		})
	}
}

func TestPaginator_RequestsCursorURLs(t *testing.T) {
	t.Parallel()

	f := &sequenceFetcher{responses: []fakeResponse{{body: "a"}, {body: "b"}, {body: "c"}}}
	p := NewPaginator(f, lineExtractor, WithSleeper(NoDelay{}))

	p.Crawl(context.Background(), testSource+"?page=9#shelf")

	want := []string{
		testSource,
		testSource + "?page=2",
		testSource + "?page=3",
		testSource + "?page=4",
	}
	if !slices.Equal(f.urls, want) {
		t.Errorf("requested URLs = %q, want %q", f.urls, want)
	}
}

func TestPaginator_FailedSourceRecordsError(t *testing.T) {
	t.Parallel()

	f := &sequenceFetcher{responses: []fakeResponse{{err: timeoutError(testSource)}}}
	p := NewPaginator(f, lineExtractor, WithSleeper(NoDelay{}), WithRetryPolicy(NoRetry()))

	result := p.Crawl(context.Background(), testSource)

	if !result.Failed() {
		t.Error("Failed() = false, want true")
	}
	var fe *fetcher.FetchError
	if !errors.As(result.Error, &fe) {
		t.Errorf("Error = %v, want *fetcher.FetchError", result.Error)
	}
	if result.ErrorMessage == "" {
		t.Error("ErrorMessage should be set")
	}
	if got := result.Pages[0].Outcome; got != model.PageFetchFailed {
		t.Errorf("page outcome = %q, want %q", got, model.PageFetchFailed)
	}
}

func TestPaginator_OversizedPageIsNotRetried(t *testing.T) {
	t.Parallel()

	tooLarge := &fetcher.FetchError{
		URL:        testSource + "?page=2",
		StatusCode: http.StatusOK,
		Err:        fetcher.ErrBodyTooLarge,
	}
	f := &sequenceFetcher{responses: []fakeResponse{
		{body: "Milk\nEggs"},
		{err: tooLarge},
		{body: "Bread"},
	}}
	p := NewPaginator(f, lineExtractor, WithSleeper(NoDelay{}), WithRetryPolicy(DefaultRetryPolicy()))

	result := p.Crawl(context.Background(), testSource)

	if result.StopReason != model.StopFetchFailed {
		t.Errorf("StopReason = %q, want %q", result.StopReason, model.StopFetchFailed)
	}
	if !errors.Is(result.Error, fetcher.ErrBodyTooLarge) {
		t.Errorf("Error = %v, want ErrBodyTooLarge", result.Error)
	}
	if got := f.calls(); got != 2 {
		t.Errorf("requests = %d, want 2 (no retry of an oversized page)", got)
	}
	if !slices.Equal(result.Items, []string{"Milk", "Eggs"}) {
		t.Errorf("Items = %q, want the first page only", result.Items)
	}
}

func TestPaginator_Delays(t *testing.T) {
	t.Parallel()

	f := &sequenceFetcher{responses: []fakeResponse{
		{body: "Milk"},
		{err: timeoutError(testSource)},
		{err: timeoutError(testSource)},
		{body: "Eggs"},
		{body: ""},
	}}
	sleeper := &recordingSleeper{}
	p := NewPaginator(f, lineExtractor,
		WithSleeper(sleeper),
		WithPageDelay(500*time.Millisecond),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, Base: time.Second, Max: 30 * time.Second}),
	)

	result := p.Crawl(context.Background(), testSource)

	want := []time.Duration{
		500 * time.Millisecond, // after page 1
		1 * time.Second,        // retry 1 of page 2
		2 * time.Second,        // retry 2 of page 2
		500 * time.Millisecond, // after page 2
	}
	if !slices.Equal(sleeper.waits, want) {
		t.Errorf("waits = %v, want %v", sleeper.waits, want)
	}
	if got := result.Pages[1].Attempts; got != 3 {
		t.Errorf("page 2 attempts = %d, want 3", got)
	}
}

func TestPaginator_ExtractFailure(t *testing.T) {
	t.Parallel()

	errBroken := errors.New("broken markup")
	ex := extract.Func(func(body string) ([]string, error) {
		if body == "broken" {
			return nil, errBroken
		}
		return []string{body}, nil
	})
	f := &sequenceFetcher{responses: []fakeResponse{{body: "Milk"}, {body: "broken"}, {body: "Eggs"}}}
	p := NewPaginator(f, ex, WithSleeper(NoDelay{}))

	result := p.Crawl(context.Background(), testSource)

	if result.StopReason != model.StopExtractFailed {
		t.Errorf("StopReason = %q, want %q", result.StopReason, model.StopExtractFailed)
	}
	if !errors.Is(result.Error, errBroken) {
		t.Errorf("Error = %v, want %v", result.Error, errBroken)
	}
	if !slices.Equal(result.Items, []string{"Milk"}) {
		t.Errorf("Items = %q, want [Milk]", result.Items)
	}
}

func TestPaginator_MaxPages(t *testing.T) {
	t.Parallel()

	f := &pageFetcher{pages: [][]string{{"a"}, {"b"}, {"c"}, {"d"}}}
	p := NewPaginator(f, lineExtractor, WithSleeper(NoDelay{}), WithMaxPages(2))

	result := p.Crawl(context.Background(), testSource)

	if result.StopReason != model.StopMaxPages {
		t.Errorf("StopReason = %q, want %q", result.StopReason, model.StopMaxPages)
	}
	if f.calls != 2 {
		t.Errorf("fetcher calls = %d, want 2", f.calls)
	}
	if !slices.Equal(result.Items, []string{"a", "b"}) {
		t.Errorf("Items = %q, want [a b]", result.Items)
	}
	if result.Failed() {
		t.Error("page limit is not a failure")
	}
}

func TestPaginator_Cancellation(t *testing.T) {
	t.Parallel()

	t.Run("before the first page", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		f := &sequenceFetcher{responses: []fakeResponse{{body: "Milk"}}}
		result := NewPaginator(f, lineExtractor, WithSleeper(NoDelay{})).Crawl(ctx, testSource)

		if result.StopReason != model.StopCancelled {
			t.Errorf("StopReason = %q, want %q", result.StopReason, model.StopCancelled)
		}
		if f.calls() != 0 {
			t.Errorf("fetcher calls = %d, want 0", f.calls())
		}
	})

	t.Run("during the page delay", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sleeper := SleeperFunc(func(_ context.Context, _ time.Duration) error {
			cancel()
			return context.Canceled
		})
		f := &sequenceFetcher{responses: []fakeResponse{{body: "Milk"}, {body: "Eggs"}}}
		result := NewPaginator(f, lineExtractor, WithSleeper(sleeper)).Crawl(ctx, testSource)

		if result.StopReason != model.StopCancelled {
			t.Errorf("StopReason = %q, want %q", result.StopReason, model.StopCancelled)
		}
		if !slices.Equal(result.Items, []string{"Milk"}) {
			t.Errorf("Items = %q, want [Milk]", result.Items)
		}
		if f.calls() != 1 {
			t.Errorf("fetcher calls = %d, want 1", f.calls())
		}
	})
}

func TestPaginator_TerminatesOnReservedLastPage(t *testing.T) {
	t.Parallel()

	for distinct := 1; distinct <= 5; distinct++ {
		t.Run(fmt.Sprintf("%d distinct pages", distinct), func(t *testing.T) {
			t.Parallel()

			pages := make([][]string, distinct)
			want := make([]string, 0)
			for i := range pages {
				pages[i] = []string{fmt.Sprintf("item-%d-a", i), fmt.Sprintf("item-%d-b", i)}
				want = append(want, pages[i]...)
			}

			f := &pageFetcher{pages: pages}
			result := NewPaginator(f, lineExtractor, WithSleeper(NoDelay{})).Crawl(context.Background(), testSource)

			if f.calls != distinct+1 {
				t.Errorf("fetches = %d, want %d", f.calls, distinct+1)
			}
			if result.StopReason != model.StopDuplicatePage {
				t.Errorf("StopReason = %q, want %q", result.StopReason, model.StopDuplicatePage)
			}
			if !slices.Equal(result.Items, want) {
				t.Errorf("Items = %q, want %q", result.Items, want)
			}
		})
	}
}

func TestPaginator_OverlapDetector(t *testing.T) {
	t.Parallel()

	f := &sequenceFetcher{responses: []fakeResponse{
		{body: "a\nb\nc"},
		{body: "c\nb\na"},
	}}

	exact := NewPaginator(f, lineExtractor, WithSleeper(NoDelay{})).Crawl(context.Background(), testSource)
	if exact.StopReason != model.StopEmptyPage {
		t.Errorf("exact StopReason = %q, want %q", exact.StopReason, model.StopEmptyPage)
	}

	f = &sequenceFetcher{responses: f.responses}
	overlap := NewPaginator(f, lineExtractor,
		WithSleeper(NoDelay{}),
		WithDetector(OverlapThreshold{Ratio: 1.0}),
	).Crawl(context.Background(), testSource)
	if overlap.StopReason != model.StopDuplicatePage {
		t.Errorf("overlap StopReason = %q, want %q", overlap.StopReason, model.StopDuplicatePage)
	}
	if len(overlap.Items) != 3 {
		t.Errorf("overlap Items = %q, want first page only", overlap.Items)
	}
}

func TestPaginator_PageRecords(t *testing.T) {
	t.Parallel()

	f := &sequenceFetcher{responses: []fakeResponse{{body: "Milk\nBread"}, {body: "Milk\nBread"}}}
	result := NewPaginator(f, lineExtractor, WithSleeper(NoDelay{})).Crawl(context.Background(), testSource)

	if len(result.Pages) != 2 {
		t.Fatalf("len(Pages) = %d, want 2", len(result.Pages))
	}
	first, second := result.Pages[0], result.Pages[1]
	if first.Outcome != model.PageAccepted || second.Outcome != model.PageDuplicate {
		t.Errorf("outcomes = %q, %q", first.Outcome, second.Outcome)
	}
	if first.Fingerprint == "" || first.Fingerprint != second.Fingerprint {
		t.Errorf("fingerprints = %q, %q; want equal and non-empty", first.Fingerprint, second.Fingerprint)
	}
	if first.LastItem != "Bread" {
		t.Errorf("LastItem = %q, want Bread", first.LastItem)
	}
	if first.ItemCount != 2 || first.Index != 0 || second.Index != 1 {
		t.Errorf("unexpected records: %+v", result.Pages)
	}
	if result.AcceptedPages() != 1 {
		t.Errorf("AcceptedPages() = %d, want 1", result.AcceptedPages())
	}
}

func TestPaginator_HTTPEndToEnd(t *testing.T) {
	t.Parallel()

	shelf := map[string][]string{
		"":  {"Arroz Branco 5kg", "Feijão Carioca 1kg"},
		"2": {"Café Torrado 500g"},
		"3": {},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		items, ok := shelf[r.URL.Query().Get("page")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		var b strings.Builder
		b.WriteString("<html><body>")
		for _, item := range items {
			fmt.Fprintf(&b, `<div><h2 class="truncate-text">%s</h2></div>`, item)
		}
		b.WriteString("</body></html>")
		_, _ = w.Write([]byte(b.String()))
	}))
	t.Cleanup(srv.Close)

	ex, err := extract.NewSelectorExtractor("h2.truncate-text")
	if err != nil {
		t.Fatalf("NewSelectorExtractor() error = %v", err)
	}
	p := NewPaginator(fetcher.New(srv.Client()), ex, WithSleeper(NoDelay{}))

	result := p.Crawl(context.Background(), srv.URL+"/colecao/42")

	want := []string{"Arroz Branco 5kg", "Feijão Carioca 1kg", "Café Torrado 500g"}
	if !slices.Equal(result.Items, want) {
		t.Errorf("Items = %q, want %q", result.Items, want)
	}
	if result.StopReason != model.StopEmptyPage {
		t.Errorf("StopReason = %q, want %q", result.StopReason, model.StopEmptyPage)
	}
	if result.Fetches != 3 {
		t.Errorf("Fetches = %d, want 3", result.Fetches)
	}
}
