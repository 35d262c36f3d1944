package partcrawl

import "time"

// FailureCategory classifies why a unit was discarded.
type FailureCategory string

// Failure categories reported in run summaries.
const (
	FailureTransientFetch FailureCategory = "transient_fetch"
	FailurePermanentFetch FailureCategory = "permanent_fetch"
	FailureExtraction     FailureCategory = "extraction"
	FailurePersistence    FailureCategory = "persistence"
)

// FailureCategories lists every category in report order.
var FailureCategories = []FailureCategory{
	FailureTransientFetch,
	FailurePermanentFetch,
	FailureExtraction,
	FailurePersistence,
}

// CategoryOf maps a unit error onto its failure category.
func CategoryOf(err error) FailureCategory {
	switch ErrorCode(err) {
	case EPERMANENT, ENOTFOUND:
		return FailurePermanentFetch
	case EEXTRACT, EINVALID:
		return FailureExtraction
	case EPERSIST:
		return FailurePersistence
	}
	return FailureTransientFetch
}

// Observer receives crawl events for metrics.
type Observer interface {
	// PageFetched is called once per fetched unit, after retries.
	PageFetched(kind PageKind, d time.Duration, err error)

	// RecordsAdmitted is called with the contents of each admitted batch.
	RecordsAdmitted(b *Batch)

	// UnitFailed is called when a unit is discarded.
	UnitFailed(kind PageKind, category FailureCategory)
}
