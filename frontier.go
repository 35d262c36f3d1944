package partcrawl

import "context"

// Frontier is the crawl's ready queue of units.
type Frontier interface {
	// Push enqueues a unit. Returns false if its URL was already queued
	// during this run.
	Push(u Unit) bool

	// Pop blocks until a unit is ready. Returns false once the frontier is
	// closed or drained with nothing in flight.
	Pop(ctx context.Context) (Unit, bool)

	// Done marks a popped unit as finished.
	Done()

	// Len returns the number of queued units.
	Len() int
}

// DomainLimiter provides per-domain rate limiting.
type DomainLimiter interface {
	// Wait blocks until the rate limit allows a request to the domain.
	// Returns an error if the context is canceled.
	Wait(ctx context.Context, domain string) error
}
