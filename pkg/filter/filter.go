// Package filter implements the vehicle search filter controller.
//
// The controller owns the year, make and model selects and the minimum
// safety rating. Changing year or make narrows the other field's options
// through the backend (bidirectional filtering) and always resets the model.
// Searches only run on an explicit OnSearchClicked or OnResetClicked.
//
// Fetches may overlap. Each fetch takes a ticket from a per-field counter and
// its response is applied only while that ticket is still the newest for the
// field, so the last request issued wins regardless of arrival order.
package filter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/safequote/safequote/pkg/ajax"
	"github.com/safequote/safequote/pkg/events"
	"github.com/safequote/safequote/pkg/vehicle"
	"golang.org/x/sync/errgroup"
)

// Field names a piece of controller state that is loaded from the backend.
type Field string

const (
	FieldYear    Field = "year"
	FieldMake    Field = "make"
	FieldModel   Field = "model"
	FieldResults Field = "results"
)

const (
	MinRating = 0
	MaxRating = 5

	DEFAULT_COUNT_FORMAT = "%d vehicles found"
)

// Notification levels passed to a Notifier.
const (
	LevelSuccess = "success"
	LevelError   = "error"
)

var (
	ErrModelWithoutMake = errors.New("a model can only be selected once a make is selected")

	// ErrSearchFailed wraps every failure of the search request itself, so
	// callers of OnResetClicked can tell it apart from option reload errors.
	ErrSearchFailed = errors.New("search vehicles")
)

// Backend is the subset of the ajax client the controller needs.
type Backend interface {
	Years(ctx context.Context, vehicleMake string) ([]ajax.Option, error)
	Makes(ctx context.Context, year string) ([]ajax.Option, error)
	Models(ctx context.Context, year, vehicleMake string) ([]ajax.Option, error)
	Search(ctx context.Context, q ajax.SearchQuery) ([]vehicle.Vehicle, error)
}

// Logger abstracts logging so callers can use logrus or anything with the
// same printf-style methods.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Notifier shows short user-facing messages.
type Notifier interface {
	Notify(level, message string)
}

// Options carries the controller's optional collaborators.
type Options struct {
	Log      Logger                              // nil = no logging
	Notifier Notifier                            // nil = no notifications
	Bus      *events.Bus[events.SearchCompleted] // nil = events are not published

	// CountFormat formats the success notification; must contain one %d.
	CountFormat string
	Now         func() time.Time
}

// FilterState is the set of filters a search runs with. Empty strings mean
// "all" and a zero rating means no rating filter.
type FilterState struct {
	Year            string
	Make            string
	Model           string
	MinSafetyRating int
}

// Query converts the filters to a search request.
func (f FilterState) Query() ajax.SearchQuery {
	return ajax.SearchQuery{
		Year:            f.Year,
		Make:            f.Make,
		Model:           f.Model,
		MinSafetyRating: f.MinSafetyRating,
	}
}

// Select is a select input: its options (without the sentinel) and the
// selected value, "" meaning the sentinel.
type Select struct {
	Options  []string
	Selected string
}

// repopulate replaces the options, keeping the selection only if it is
// still offered.
func (s *Select) repopulate(names []string) {
	s.Options = append([]string(nil), names...)
	if s.Selected == "" {
		return
	}
	for _, n := range names {
		if n == s.Selected {
			return
		}
	}
	s.Selected = ""
}

func (s Select) clone() Select {
	return Select{Options: append([]string(nil), s.Options...), Selected: s.Selected}
}

// State is a snapshot of everything the controller renders.
type State struct {
	Year            Select
	Make            Select
	Model           Select
	MinSafetyRating int
	RatingLabel     string

	// Results holds the last applied search; Searched is false until one succeeds.
	Results  []vehicle.Vehicle
	Searched bool
}

// Filters returns the current filter values.
func (s State) Filters() FilterState {
	return FilterState{
		Year:            s.Year.Selected,
		Make:            s.Make.Selected,
		Model:           s.Model.Selected,
		MinSafetyRating: s.MinSafetyRating,
	}
}

// Controller keeps the filters consistent with each other and the backend.
// All methods are safe for concurrent use.
type Controller struct {
	backend     Backend
	cfg         ajax.Config
	log         Logger
	notifier    Notifier
	bus         *events.Bus[events.SearchCompleted]
	countFormat string
	now         func() time.Time

	mu      sync.Mutex
	state   State
	tickets map[Field]uint64
}

// New returns a controller with every field at its default.
func New(backend Backend, cfg ajax.Config, opts Options) *Controller {
	c := &Controller{
		backend:     backend,
		cfg:         cfg,
		log:         opts.Log,
		notifier:    opts.Notifier,
		bus:         opts.Bus,
		countFormat: opts.CountFormat,
		now:         opts.Now,
		tickets:     make(map[Field]uint64),
	}
	if c.log == nil {
		c.log = nopLogger{}
	}
	if c.countFormat == "" {
		c.countFormat = DEFAULT_COUNT_FORMAT
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.state.RatingLabel = RatingLabel(0)
	return c
}

// RatingLabel is the "<value>/5" text shown next to the slider.
func RatingLabel(value int) string {
	return strconv.Itoa(value) + "/" + strconv.Itoa(MaxRating)
}

// State returns a deep copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Year = s.Year.clone()
	s.Make = s.Make.clone()
	s.Model = s.Model.clone()
	s.Results = append([]vehicle.Vehicle(nil), s.Results...)
	return s
}

// Initialize loads the unfiltered year and make lists concurrently. Without
// a nonce nothing can be authorized, so it does nothing.
func (c *Controller) Initialize(ctx context.Context) error {
	if !c.cfg.HasNonce() {
		c.log.Debugf("No nonce available, skipping option loading")
		return nil
	}
	return c.reloadUnfiltered(ctx)
}

// OnYearChanged selects year, resets the model, narrows the makes to year
// and, when a make remains selected, reloads its models. The model reload is
// skipped once a newer year change or reset has taken over the make list.
func (c *Controller) OnYearChanged(ctx context.Context, year string) error {
	c.mu.Lock()
	c.state.Year.Selected = year
	c.resetModelLocked()
	makesTicket := c.issueLocked(FieldMake)
	c.mu.Unlock()

	makesErr := c.applyOptions(ctx, FieldMake, makesTicket, func(ctx context.Context) ([]ajax.Option, error) {
		return c.backend.Makes(ctx, year)
	})

	// A newer year change or reset owns the model list from here on.
	c.mu.Lock()
	if !c.currentLocked(FieldMake, makesTicket) || c.state.Year.Selected != year {
		c.mu.Unlock()
		c.log.Debugf("Year change to %q superseded, skipping model reload", year)
		return makesErr
	}
	vehicleMake := c.state.Make.Selected
	if vehicleMake == "" {
		c.mu.Unlock()
		return makesErr
	}
	modelsTicket := c.issueLocked(FieldModel)
	c.mu.Unlock()

	modelsErr := c.applyOptions(ctx, FieldModel, modelsTicket, func(ctx context.Context) ([]ajax.Option, error) {
		return c.backend.Models(ctx, year, vehicleMake)
	})
	return errors.Join(makesErr, modelsErr)
}

// OnMakeChanged selects vehicleMake, resets the model, narrows the years to
// the make and, for a non-empty make, loads its models.
func (c *Controller) OnMakeChanged(ctx context.Context, vehicleMake string) error {
	c.mu.Lock()
	c.state.Make.Selected = vehicleMake
	c.resetModelLocked()
	year := c.state.Year.Selected
	c.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		return c.loadOptions(ctx, FieldYear, func(ctx context.Context) ([]ajax.Option, error) {
			return c.backend.Years(ctx, vehicleMake)
		})
	})
	if vehicleMake != "" {
		g.Go(func() error {
			return c.loadOptions(ctx, FieldModel, func(ctx context.Context) ([]ajax.Option, error) {
				return c.backend.Models(ctx, year, vehicleMake)
			})
		})
	}
	return g.Wait()
}

// OnModelChanged selects model. "" selects the sentinel.
func (c *Controller) OnModelChanged(model string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if model != "" && c.state.Make.Selected == "" {
		return ErrModelWithoutMake
	}
	c.state.Model.Selected = model
	return nil
}

// OnRatingSliderInput sets the minimum rating, clamped to [0,5], and
// returns the new label.
func (c *Controller) OnRatingSliderInput(value int) string {
	if value < MinRating {
		value = MinRating
	}
	if value > MaxRating {
		value = MaxRating
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.MinSafetyRating = value
	c.state.RatingLabel = RatingLabel(value)
	return c.state.RatingLabel
}

// OnSearchClicked searches with the current filters. On success the results
// are stored, a SearchCompleted event is published and the notifier is told
// the count. On failure the previous results stay in place.
func (c *Controller) OnSearchClicked(ctx context.Context) error {
	c.mu.Lock()
	filters := c.state.Filters()
	ticket := c.issueLocked(FieldResults)
	c.mu.Unlock()

	vehicles, err := c.backend.Search(ctx, filters.Query())
	if err != nil {
		c.log.Warnf("Vehicle search failed: %v", err)
		return fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	c.mu.Lock()
	if !c.currentLocked(FieldResults, ticket) {
		c.mu.Unlock()
		c.log.Debugf("Discarding superseded search response (ticket %d)", ticket)
		return nil
	}
	c.state.Results = vehicles
	c.state.Searched = true
	c.mu.Unlock()

	c.log.Debugf("Search %+v returned %d vehicles", filters, len(vehicles))

	if c.bus != nil {
		c.bus.Publish(events.SearchCompleted{
			Year:            filters.Year,
			Make:            filters.Make,
			Model:           filters.Model,
			MinSafetyRating: filters.MinSafetyRating,
			Vehicles:        append([]vehicle.Vehicle(nil), vehicles...),
			At:              c.now().UTC(),
		})
	}
	if c.notifier != nil {
		c.notifier.Notify(LevelSuccess, fmt.Sprintf(c.countFormat, len(vehicles)))
	}
	return nil
}

// OnResetClicked clears every filter, reloads the unfiltered option lists and
// searches again with no filters. The search runs even when a reload fails;
// only a search failure wraps ErrSearchFailed.
func (c *Controller) OnResetClicked(ctx context.Context) error {
	c.mu.Lock()
	c.state.Year.Selected = ""
	c.state.Make.Selected = ""
	c.resetModelLocked()
	c.state.MinSafetyRating = 0
	c.state.RatingLabel = RatingLabel(0)
	c.mu.Unlock()

	loadErr := c.reloadUnfiltered(ctx)
	searchErr := c.OnSearchClicked(ctx)
	return errors.Join(loadErr, searchErr)
}

func (c *Controller) reloadUnfiltered(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		return c.loadOptions(ctx, FieldYear, func(ctx context.Context) ([]ajax.Option, error) {
			return c.backend.Years(ctx, "")
		})
	})
	g.Go(func() error {
		return c.loadOptions(ctx, FieldMake, func(ctx context.Context) ([]ajax.Option, error) {
			return c.backend.Makes(ctx, "")
		})
	})
	return g.Wait()
}

// loadOptions fetches a field's options and applies them unless a newer
// fetch for the same field was issued meanwhile.
func (c *Controller) loadOptions(ctx context.Context, field Field, fetch func(context.Context) ([]ajax.Option, error)) error {
	c.mu.Lock()
	ticket := c.issueLocked(field)
	c.mu.Unlock()
	return c.applyOptions(ctx, field, ticket, fetch)
}

// applyOptions runs fetch for an already issued ticket.
func (c *Controller) applyOptions(ctx context.Context, field Field, ticket uint64, fetch func(context.Context) ([]ajax.Option, error)) error {
	opts, err := fetch(ctx)
	if err != nil {
		c.log.Warnf("Failed to load %s options: %v", field, err)
		return fmt.Errorf("load %s options: %w", field, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(field, ticket) {
		c.log.Debugf("Discarding stale %s options (ticket %d)", field, ticket)
		return nil
	}
	c.selectLocked(field).repopulate(ajax.Names(opts))
	return nil
}

// resetModelLocked clears the model select and invalidates in-flight model
// fetches. Must hold mu.
func (c *Controller) resetModelLocked() {
	c.state.Model = Select{}
	c.issueLocked(FieldModel)
}

// issueLocked hands out the next ticket for field. Must hold mu.
func (c *Controller) issueLocked(field Field) uint64 {
	c.tickets[field]++
	return c.tickets[field]
}

// currentLocked reports whether ticket is the newest for field. Must hold mu.
func (c *Controller) currentLocked(field Field, ticket uint64) bool {
	return c.tickets[field] == ticket
}

// selectLocked returns the select backing field. Must hold mu.
func (c *Controller) selectLocked(field Field) *Select {
	switch field {
	case FieldYear:
		return &c.state.Year
	case FieldMake:
		return &c.state.Make
	case FieldModel:
		return &c.state.Model
	default:
		panic("filter: no select for field " + string(field))
	}
}
