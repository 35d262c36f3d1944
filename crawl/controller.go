package crawl

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fwojciec/partcrawl"
)

// Phase is the traversal state of one appliance type.
type Phase int

const (
	// PhaseSeeded means the root unit is queued but not yet processed.
	PhaseSeeded Phase = iota
	// PhaseListingCrawl means model listing pages are still being walked.
	PhaseListingCrawl
	// PhaseModelCrawl means the listing is finished and only model and part
	// units remain.
	PhaseModelCrawl
	// PhaseDone means no unit for the type remains.
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseSeeded:
		return "seeded"
	case PhaseListingCrawl:
		return "listing_crawl"
	case PhaseModelCrawl:
		return "model_crawl"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// Budget caps the size of a run.
type Budget struct {
	// MaxModels is the number of models scheduled per appliance type.
	MaxModels int
	// MaxPartsPerModel is the number of part links followed per model.
	MaxPartsPerModel int
}

// Admission is what the controller decided to keep from one extraction.
type Admission struct {
	// Batch holds the records to persist. It may be empty.
	Batch *partcrawl.Batch
	// Units are the follow-up units to enqueue once Batch is persisted.
	Units []partcrawl.Unit
}

type typeState struct {
	phase           Phase
	modelsScheduled int
	// pending counts units of this type that were queued and not finished.
	pending     int
	listingDone bool
	rootFailed  bool
}

type partStatus int

const (
	partInFlight partStatus = iota
	partResolved
	partFailed
)

type partState struct {
	status partStatus
	// links discovered for the part while its detail page is in flight.
	links []partcrawl.ModelPartLink
}

// Controller owns the crawl plan. It turns extractions into admitted
// records and follow-up units while enforcing the run's budgets. It is safe
// for concurrent use.
type Controller struct {
	mu       sync.Mutex
	frontier partcrawl.Frontier
	dedup    *Deduplicator
	budget   Budget
	baseURL  string
	logger   *slog.Logger

	types          map[partcrawl.ApplianceType]*typeState
	partsScheduled map[string]int
	parts          map[string]*partState
}

// NewController creates a Controller that schedules onto frontier.
func NewController(frontier partcrawl.Frontier, dedup *Deduplicator, budget Budget, baseURL string, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		frontier:       frontier,
		dedup:          dedup,
		budget:         budget,
		baseURL:        strings.TrimRight(baseURL, "/"),
		logger:         logger,
		types:          make(map[partcrawl.ApplianceType]*typeState),
		partsScheduled: make(map[string]int),
		parts:          make(map[string]*partState),
	}
}

// RootURL returns the model listing root for an appliance type.
func RootURL(baseURL string, t partcrawl.ApplianceType) string {
	return strings.TrimRight(baseURL, "/") + "/" + string(t) + "-Models.htm"
}

// Seed queues the root unit of each appliance type.
func (c *Controller) Seed(types []partcrawl.ApplianceType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range types {
		if _, ok := c.types[t]; ok {
			continue
		}
		st := &typeState{phase: PhaseSeeded}
		c.types[t] = st
		c.pushLocked(partcrawl.Unit{
			URL:           RootURL(c.baseURL, t),
			Kind:          partcrawl.ApplianceRoot,
			ApplianceType: t,
			Page:          1,
		})
	}
}

// Admit applies deduplication and budgets to the records extracted from
// unit u. Follow-up units are returned rather than queued so the caller
// can persist the batch first.
func (c *Controller) Admit(u partcrawl.Unit, ext *partcrawl.Extraction) (*Admission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stateLocked(u.ApplianceType)
	adm := &Admission{Batch: &partcrawl.Batch{ApplianceType: u.ApplianceType}}

	switch u.Kind {
	case partcrawl.ApplianceRoot, partcrawl.ModelListing:
		if st.phase == PhaseSeeded {
			st.phase = PhaseListingCrawl
		}
		c.admitListingLocked(u, st, ext, adm)
	case partcrawl.ModelDetail:
		if ext.Next != "" {
			adm.Units = append(adm.Units, partcrawl.Unit{
				URL:           ext.Next,
				Kind:          partcrawl.PartListing,
				ApplianceType: u.ApplianceType,
				ModelNumber:   u.ModelNumber,
				Page:          1,
			})
		}
	case partcrawl.PartListing:
		c.admitPartListingLocked(u, ext, adm)
	case partcrawl.PartDetail:
		if err := c.admitPartLocked(u, ext, adm); err != nil {
			return nil, err
		}
	default:
		return nil, partcrawl.Errorf(partcrawl.EINVALID, "unknown page kind %s", u.Kind)
	}
	return adm, nil
}

func (c *Controller) admitListingLocked(u partcrawl.Unit, st *typeState, ext *partcrawl.Extraction, adm *Admission) {
	claimed := 0
	for _, m := range ext.Models {
		if st.modelsScheduled >= c.budget.MaxModels {
			break
		}
		model := *m
		model.ModelNumber = partcrawl.CanonicalModelNumber(model.ModelNumber)
		model.ApplianceType = u.ApplianceType
		if err := model.Validate(); err != nil {
			c.logger.Debug("skip model", "url", u.URL, "err", err)
			continue
		}
		if !c.dedup.Claim(ModelKey(model.ModelNumber)) {
			continue
		}
		st.modelsScheduled++
		claimed++
		adm.Batch.Models = append(adm.Batch.Models, &model)
		adm.Units = append(adm.Units, partcrawl.Unit{
			URL:           modelURL(c.baseURL, &model),
			Kind:          partcrawl.ModelDetail,
			ApplianceType: u.ApplianceType,
			ModelNumber:   model.ModelNumber,
		})
	}

	// A page that yields no new model ends the listing even if it links
	// further, so a site repeating its last page cannot keep us paginating.
	if st.modelsScheduled < c.budget.MaxModels && claimed > 0 && ext.Next != "" {
		adm.Units = append(adm.Units, partcrawl.Unit{
			URL:           ext.Next,
			Kind:          partcrawl.ModelListing,
			ApplianceType: u.ApplianceType,
			Page:          u.Page + 1,
		})
		return
	}
	c.finishListingLocked(st)
}

func (c *Controller) admitPartListingLocked(u partcrawl.Unit, ext *partcrawl.Extraction, adm *Admission) {
	model := partcrawl.CanonicalModelNumber(u.ModelNumber)
	claimed := 0
	for _, p := range ext.Parts {
		if c.partsScheduled[model] >= c.budget.MaxPartsPerModel {
			break
		}
		number := partcrawl.CanonicalPartNumber(p.PartNumber)
		if number == "" {
			continue
		}
		if !c.dedup.Claim(LinkKey(model, number)) {
			continue
		}
		c.partsScheduled[model]++
		claimed++
		link := partcrawl.ModelPartLink{ModelNumber: model, PartNumber: number}

		ps, ok := c.parts[number]
		switch {
		case !ok:
			if !c.dedup.Claim(PartKey(number)) {
				// Claimed outside this controller; nothing to fetch.
				adm.Batch.Links = append(adm.Batch.Links, link)
				continue
			}
			summary := *p
			summary.PartNumber = number
			summary.ApplianceType = u.ApplianceType
			c.parts[number] = &partState{status: partInFlight, links: []partcrawl.ModelPartLink{link}}
			adm.Units = append(adm.Units, partcrawl.Unit{
				URL:           partURL(c.baseURL, &summary),
				Kind:          partcrawl.PartDetail,
				ApplianceType: u.ApplianceType,
				ModelNumber:   model,
				PartNumber:    number,
				Summary:       &summary,
			})
		case ps.status == partResolved:
			adm.Batch.Links = append(adm.Batch.Links, link)
		case ps.status == partInFlight:
			ps.links = append(ps.links, link)
		default:
			c.logger.Warn("drop link to failed part", "model", model, "part", number)
		}
	}

	if c.partsScheduled[model] < c.budget.MaxPartsPerModel && claimed > 0 && ext.Next != "" {
		adm.Units = append(adm.Units, partcrawl.Unit{
			URL:           ext.Next,
			Kind:          partcrawl.PartListing,
			ApplianceType: u.ApplianceType,
			ModelNumber:   model,
			Page:          u.Page + 1,
		})
	}
}

func (c *Controller) admitPartLocked(u partcrawl.Unit, ext *partcrawl.Extraction, adm *Admission) error {
	if len(ext.Parts) == 0 {
		return partcrawl.Errorf(partcrawl.ENOTFOUND, "part %s: detail page not found", u.PartNumber)
	}
	part := *ext.Parts[0]
	part.PartNumber = u.PartNumber
	part.Merge(u.Summary)
	if part.Name == "" {
		part.Name = "Unknown Part"
	}
	part.ApplianceType = u.ApplianceType
	if err := part.Validate(); err != nil {
		return &partcrawl.ExtractionError{URL: u.URL, Kind: u.Kind, Reason: partcrawl.ErrorMessage(err)}
	}

	adm.Batch.Parts = append(adm.Batch.Parts, &part)
	if ps, ok := c.parts[u.PartNumber]; ok {
		adm.Batch.Links = append(adm.Batch.Links, ps.links...)
		ps.links = nil
	}
	return nil
}

// Settle is called once the batch for a part detail unit has been written.
// Later links to the part are admitted directly. It returns the links that
// were discovered while the batch was being written.
func (c *Controller) Settle(u partcrawl.Unit) []partcrawl.ModelPartLink {
	c.mu.Lock()
	defer c.mu.Unlock()

	ps, ok := c.parts[u.PartNumber]
	if !ok {
		return nil
	}
	ps.status = partResolved
	links := ps.links
	ps.links = nil
	return links
}

// Fail records that unit u could not be processed. It reports whether the
// failure counts against the run: a continuation page that no longer
// exists is the end of pagination, not a failure.
func (c *Controller) Fail(u partcrawl.Unit, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stateLocked(u.ApplianceType)
	switch u.Kind {
	case partcrawl.ApplianceRoot, partcrawl.ModelListing:
		if st.phase == PhaseSeeded {
			st.phase = PhaseListingCrawl
		}
		c.finishListingLocked(st)
		if u.Kind == partcrawl.ApplianceRoot && isFetchFailure(err) {
			st.rootFailed = true
		}
		if u.Page > 1 && partcrawl.IsNotFound(err) {
			return false
		}
	case partcrawl.PartListing:
		if u.Page > 1 && partcrawl.IsNotFound(err) {
			return false
		}
	case partcrawl.PartDetail:
		if ps, ok := c.parts[u.PartNumber]; ok {
			if len(ps.links) > 0 {
				c.logger.Warn("drop links to failed part", "part", u.PartNumber, "links", len(ps.links))
			}
			ps.status = partFailed
			ps.links = nil
		}
	}
	return true
}

// Enqueue pushes follow-up units onto the frontier. Units whose URL was
// already queued this run are skipped.
func (c *Controller) Enqueue(units []partcrawl.Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range units {
		if c.pushLocked(u) {
			continue
		}
		switch u.Kind {
		case partcrawl.PartDetail:
			if ps, ok := c.parts[u.PartNumber]; ok && ps.status == partInFlight {
				c.logger.Warn("part detail URL already queued", "url", u.URL, "part", u.PartNumber)
				ps.status = partFailed
				ps.links = nil
			}
		case partcrawl.ModelListing:
			c.finishListingLocked(c.stateLocked(u.ApplianceType))
		}
	}
}

// Finish marks unit u as complete. It must be called exactly once for
// every unit popped from the frontier, after Enqueue.
func (c *Controller) Finish(u partcrawl.Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stateLocked(u.ApplianceType)
	if st.pending > 0 {
		st.pending--
	}
	c.advanceLocked(st)
}

// Phases returns a snapshot of every appliance type's phase.
func (c *Controller) Phases() map[partcrawl.ApplianceType]Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	phases := make(map[partcrawl.ApplianceType]Phase, len(c.types))
	for t, st := range c.types {
		phases[t] = st.phase
	}
	return phases
}

// RootsFailed reports whether every seeded root unit failed.
func (c *Controller) RootsFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.types) == 0 {
		return false
	}
	for _, st := range c.types {
		if !st.rootFailed {
			return false
		}
	}
	return true
}

func (c *Controller) pushLocked(u partcrawl.Unit) bool {
	if !c.frontier.Push(u) {
		return false
	}
	c.stateLocked(u.ApplianceType).pending++
	return true
}

func (c *Controller) finishListingLocked(st *typeState) {
	st.listingDone = true
	if st.phase < PhaseModelCrawl {
		st.phase = PhaseModelCrawl
	}
	c.advanceLocked(st)
}

func (c *Controller) advanceLocked(st *typeState) {
	if st.listingDone && st.pending == 0 {
		st.phase = PhaseDone
	}
}

func (c *Controller) stateLocked(t partcrawl.ApplianceType) *typeState {
	st, ok := c.types[t]
	if !ok {
		st = &typeState{phase: PhaseSeeded}
		c.types[t] = st
	}
	return st
}

func isFetchFailure(err error) bool {
	switch partcrawl.ErrorCode(err) {
	case partcrawl.ETRANSIENT, partcrawl.EPERMANENT:
		return true
	}
	return false
}

func modelURL(baseURL string, m *partcrawl.Model) string {
	if m.SourceURL != "" {
		return m.SourceURL
	}
	return fmt.Sprintf("%s/Models/%s/", baseURL, m.ModelNumber)
}

func partURL(baseURL string, p *partcrawl.Part) string {
	if p.SourceURL != "" {
		return p.SourceURL
	}
	return fmt.Sprintf("%s/%s.htm", baseURL, p.PartNumber)
}
