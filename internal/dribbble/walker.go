package dribbble

import (
	"context"
	"errors"
)

// PageFetcher fetches one feed page. *Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (*Page, error)
}

// WalkState is the state of a Walker.
type WalkState int

const (
	// WalkActive has a next URL and budget left.
	WalkActive WalkState = iota
	// WalkExhausted ran out of next links or page budget.
	WalkExhausted
	// WalkFailed stopped on a failed fetch.
	WalkFailed
)

func (s WalkState) String() string {
	switch s {
	case WalkActive:
		return "active"
	case WalkExhausted:
		return "exhausted"
	case WalkFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CrawlCursor is the walker's position in the feed.
type CrawlCursor struct {
	NextURL      string
	PagesVisited int
}

// Walker follows rel="next" links through a paginated feed, one paced fetch per step.
// Fetch failures end the walk without an error being raised from Next; callers tell a
// complete walk from a truncated one through State and Err.
//
//	w := NewWalker(client, throttle, seed, 10)
//	for w.Next(ctx) {
//		handle(w.Page())
//	}
//	if w.State() == WalkFailed { ... }
type Walker struct {
	fetcher  PageFetcher
	throttle *Throttle
	maxPages int

	cursor     CrawlCursor
	state      WalkState
	page       *Page
	lastStatus int
	err        error
}

// NewWalker starts a walk at seedURL that fetches at most maxPages pages.
func NewWalker(fetcher PageFetcher, throttle *Throttle, seedURL string, maxPages int) *Walker {
	w := &Walker{
		fetcher:  fetcher,
		throttle: throttle,
		maxPages: maxPages,
		cursor:   CrawlCursor{NextURL: seedURL},
		state:    WalkActive,
	}
	if seedURL == "" || maxPages <= 0 {
		w.state = WalkExhausted
	}
	return w
}

// Next fetches the next page. It returns false once the walk is exhausted or failed.
func (w *Walker) Next(ctx context.Context) bool {
	w.page = nil
	if w.state != WalkActive {
		return false
	}
	if w.cursor.NextURL == "" || w.cursor.PagesVisited >= w.maxPages {
		w.state = WalkExhausted
		return false
	}

	if w.throttle != nil {
		if err := w.throttle.Wait(ctx); err != nil {
			w.fail(err)
			return false
		}
	}

	page, err := w.fetcher.FetchPage(ctx, w.cursor.NextURL)
	w.cursor.PagesVisited++
	if page != nil {
		w.lastStatus = page.StatusCode
	}
	if err != nil {
		w.fail(err)
		return false
	}

	w.page = page
	w.cursor.NextURL = page.Links["next"]
	if w.cursor.NextURL == "" || w.cursor.PagesVisited >= w.maxPages {
		w.state = WalkExhausted
	}
	return true
}

func (w *Walker) fail(err error) {
	w.state = WalkFailed
	w.err = err
}

// Page returns the page fetched by the last successful Next.
func (w *Walker) Page() *Page {
	return w.page
}

// State returns the current walk state.
func (w *Walker) State() WalkState {
	return w.state
}

// PagesVisited counts fetch attempts, including a failed final one.
func (w *Walker) PagesVisited() int {
	return w.cursor.PagesVisited
}

// Cursor returns a copy of the walk position. After a failure NextURL is the page that
// could not be fetched.
func (w *Walker) Cursor() CrawlCursor {
	return w.cursor
}

// LastStatus returns the HTTP status of the most recent response, 0 if none.
func (w *Walker) LastStatus() int {
	return w.lastStatus
}

// Err returns the failure that ended the walk, nil unless State is WalkFailed.
func (w *Walker) Err() error {
	return w.err
}

// Truncated reports whether the walk stopped before the feed was exhausted, either
// because a fetch failed or because the page budget ran out with a next link pending.
func (w *Walker) Truncated() bool {
	return w.state == WalkFailed || (w.state == WalkExhausted && w.cursor.NextURL != "")
}

// IsFeedUnavailable reports whether err came from a non-success API response.
func IsFeedUnavailable(err error) bool {
	return errors.Is(err, ErrFeedUnavailable)
}
