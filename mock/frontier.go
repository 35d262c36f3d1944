package mock

import (
	"context"

	"github.com/fwojciec/partcrawl"
)

var _ partcrawl.Frontier = (*Frontier)(nil)

// Frontier is a mock implementation of partcrawl.Frontier.
type Frontier struct {
	PushFn func(u partcrawl.Unit) bool
	PopFn  func(ctx context.Context) (partcrawl.Unit, bool)
	DoneFn func()
	LenFn  func() int
}

func (f *Frontier) Push(u partcrawl.Unit) bool {
	return f.PushFn(u)
}

func (f *Frontier) Pop(ctx context.Context) (partcrawl.Unit, bool) {
	return f.PopFn(ctx)
}

func (f *Frontier) Done() {
	f.DoneFn()
}

func (f *Frontier) Len() int {
	return f.LenFn()
}

var _ partcrawl.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter is a mock implementation of partcrawl.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return l.WaitFn(ctx, domain)
}
