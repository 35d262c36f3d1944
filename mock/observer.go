package mock

import (
	"time"

	"github.com/fwojciec/partcrawl"
)

var _ partcrawl.Observer = (*Observer)(nil)

// Observer is a mock implementation of partcrawl.Observer.
type Observer struct {
	PageFetchedFn     func(kind partcrawl.PageKind, d time.Duration, err error)
	RecordsAdmittedFn func(b *partcrawl.Batch)
	UnitFailedFn      func(kind partcrawl.PageKind, category partcrawl.FailureCategory)
}

func (o *Observer) PageFetched(kind partcrawl.PageKind, d time.Duration, err error) {
	o.PageFetchedFn(kind, d, err)
}

func (o *Observer) RecordsAdmitted(b *partcrawl.Batch) {
	o.RecordsAdmittedFn(b)
}

func (o *Observer) UnitFailed(kind partcrawl.PageKind, category partcrawl.FailureCategory) {
	o.UnitFailedFn(kind, category)
}
