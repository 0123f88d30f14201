package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"searchq/internal/api"
	"searchq/internal/engines"
)

var (
	// ErrNoBrowserHost indicates no native host is polling for browser
	// searches, so an engine without a search_url cannot be searched.
	ErrNoBrowserHost = errors.New("no browser connected to run the search")
	// ErrBrowserSearchTimeout indicates a native host took a search but never
	// reported its outcome.
	ErrBrowserSearchTimeout = errors.New("browser did not finish the search in time")
)

const (
	// claimWait bounds one long poll from a native host. It stays under the
	// ipc call timeout.
	claimWait = 20 * time.Second
	// offerWait is how long a search waits for a polling host to take it.
	offerWait = 2 * time.Second
)

// browserSearches hands searches to native hosts, which run them through
// the browser's search API and report back.
type browserSearches struct {
	replyTimeout time.Duration
	offers       chan api.BrowserSearch

	mu       sync.Mutex
	polling  int
	lastSeen time.Time
	results  map[string]chan error
}

func newBrowserSearches(replyTimeout time.Duration) *browserSearches {
	return &browserSearches{
		replyTimeout: replyTimeout,
		offers:       make(chan api.BrowserSearch),
		results:      make(map[string]chan error),
	}
}

// Execute implements engines.Executor.
func (b *browserSearches) Execute(ctx context.Context, req engines.Request) error {
	search := api.BrowserSearch{
		Ticket:      uuid.NewString(),
		Engine:      req.Engine,
		Query:       req.Query,
		Disposition: string(req.Disposition),
	}
	result := make(chan error, 1)
	b.mu.Lock()
	if !b.hostPresentLocked() {
		b.mu.Unlock()
		return ErrNoBrowserHost
	}
	b.results[search.Ticket] = result
	b.mu.Unlock()
	defer b.forget(search.Ticket)

	offer := time.NewTimer(offerWait)
	defer offer.Stop()
	select {
	case b.offers <- search:
	case <-offer.C:
		return ErrNoBrowserHost
	case <-ctx.Done():
		return ctx.Err()
	}

	reply := time.NewTimer(b.replyTimeout)
	defer reply.Stop()
	select {
	case err := <-result:
		return err
	case <-reply.C:
		return ErrBrowserSearchTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// claim waits up to claimWait for a search. It reports false when none
// arrived.
func (b *browserSearches) claim(ctx context.Context) (api.BrowserSearch, bool) {
	b.track(1)
	defer b.track(-1)

	timer := time.NewTimer(claimWait)
	defer timer.Stop()
	select {
	case search := <-b.offers:
		return search, true
	case <-timer.C:
	case <-ctx.Done():
	}
	return api.BrowserSearch{}, false
}

// complete delivers the outcome of a claimed search. message is empty on
// success. It reports false for unknown or expired tickets.
func (b *browserSearches) complete(ticket, message string) bool {
	b.mu.Lock()
	result, ok := b.results[ticket]
	b.mu.Unlock()
	if !ok {
		return false
	}
	var err error
	if message != "" {
		err = fmt.Errorf("browser search: %s", message)
	}
	select {
	case result <- err:
	default:
	}
	return true
}

// hostPresent reports whether a host is polling or polled moments ago.
func (b *browserSearches) hostPresent() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hostPresentLocked()
}

func (b *browserSearches) hostPresentLocked() bool {
	return b.polling > 0 || time.Since(b.lastSeen) < offerWait
}

func (b *browserSearches) track(delta int) {
	b.mu.Lock()
	b.polling += delta
	b.lastSeen = time.Now()
	b.mu.Unlock()
}

func (b *browserSearches) forget(ticket string) {
	b.mu.Lock()
	delete(b.results, ticket)
	b.mu.Unlock()
}
