// Package orchestrator drives the search -> resolve -> fetch -> render
// pipeline for one user and owns the current location, weather snapshot and
// unit preference.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/geolocate"
	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/units"
	"github.com/kjstillabower/weather-lookup/internal/validation"
)

// LocationResolver turns a free-text query into candidate locations.
type LocationResolver interface {
	Resolve(ctx context.Context, query, countryCode string) client.Resolution
}

// ForecastFetcher turns coordinates into a weather snapshot.
type ForecastFetcher interface {
	Fetch(ctx context.Context, latitude, longitude float64) (models.WeatherSnapshot, error)
}

// LocationStore persists favorites for one profile. The newest save is the
// startup location.
type LocationStore interface {
	Save(ctx context.Context, loc models.Location) error
	GetSaved(ctx context.Context) (models.Location, bool, error)
	List(ctx context.Context) ([]models.Location, error)
}

// ReverseGeocoder names a geolocation fix.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, latitude, longitude float64) (models.Location, error)
}

// GeolocationProvider yields a one-shot position fix, or ok=false when
// geolocation is unavailable or denied.
type GeolocationProvider interface {
	Locate(ctx context.Context) (latitude, longitude float64, ok bool)
}

// SelectFunc re-enters the pipeline at the fetch step for a chosen candidate.
type SelectFunc func(ctx context.Context, loc models.Location) error

// Presenter renders page states. It never receives raw collaborator errors.
type Presenter interface {
	RenderLoading()
	RenderResults(view View)
	RenderNoResults()
	RenderAPIError()
	RenderDisambiguation(candidates []models.Location, onSelect SelectFunc)
	RenderInvalidInput(message string)
}

// Orchestrator is safe for concurrent use. Network calls run outside the
// lock; when fetches overlap, the last one to complete wins.
type Orchestrator struct {
	resolver  LocationResolver
	fetcher   ForecastFetcher
	presenter Presenter
	store     LocationStore
	namer     ReverseGeocoder
	logger    *zap.Logger
	maxQuery  int

	mu         sync.Mutex
	state      State
	pref       units.Preference
	location   *models.Location
	snapshot   *models.WeatherSnapshot
	candidates []models.Location
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore enables favorites and saved-location startup.
func WithStore(s LocationStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithReverseGeocoder sets the namer used for geolocation fixes.
func WithReverseGeocoder(g ReverseGeocoder) Option {
	return func(o *Orchestrator) { o.namer = g }
}

// WithLogger sets the fallback logger; a request-scoped logger in ctx wins.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithPreference sets the initial unit preference.
func WithPreference(p units.Preference) Option {
	return func(o *Orchestrator) { o.pref = p }
}

// WithMaxQueryLength sets the exclusive query length bound in runes.
func WithMaxQueryLength(n int) Option {
	return func(o *Orchestrator) { o.maxQuery = n }
}

// New creates an Idle orchestrator with a metric preference.
func New(resolver LocationResolver, fetcher ForecastFetcher, presenter Presenter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:  resolver,
		fetcher:   fetcher,
		presenter: presenter,
		namer:     geolocate.StaticNamer{},
		logger:    zap.NewNop(),
		maxQuery:  validation.DefaultMaxQueryLength,
		state:     StateIdle,
		pref:      units.DefaultPreference(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current workflow state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Preference returns the active unit preference.
func (o *Orchestrator) Preference() units.Preference {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pref
}

// Current returns the rendered location and snapshot, if any.
func (o *Orchestrator) Current() (models.Location, models.WeatherSnapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRendered || o.location == nil || o.snapshot == nil {
		return models.Location{}, models.WeatherSnapshot{}, false
	}
	return *o.location, *o.snapshot, true
}

// Candidates returns the locations offered by the last disambiguation.
func (o *Orchestrator) Candidates() []models.Location {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.Location(nil), o.candidates...)
}

// Search runs the pipeline for a free-text query with no country filter.
func (o *Orchestrator) Search(ctx context.Context, query string) error {
	return o.SearchInCountry(ctx, query, "")
}

// SearchInCountry runs the pipeline restricted to an ISO 3166-1 alpha-2
// country. Invalid input is reported to the presenter and leaves the state
// unchanged. NoResults and Disambiguating return nil.
func (o *Orchestrator) SearchInCountry(ctx context.Context, query, countryCode string) error {
	logger := observability.LoggerFrom(ctx, o.logger)

	prev := o.swapState(StateValidating)
	q, err := validation.ValidateQuery(query, o.maxQuery)
	if err == nil {
		countryCode, err = validation.ValidateCountry(countryCode)
	}
	if err != nil {
		o.restoreState(StateValidating, prev)
		observability.SearchesTotal.WithLabelValues("invalid").Inc()
		o.presenter.RenderInvalidInput(err.Error())
		return &InvalidInputError{Message: err.Error(), Err: err}
	}

	o.setState(StateResolving)
	o.presenter.RenderLoading()

	start := time.Now()
	res := o.resolver.Resolve(ctx, q, countryCode)
	if res.Kind == client.ResolutionFound {
		res = withCoordinates(res)
		if res.Kind == client.ResolutionEmpty {
			logger.Debug("dropped candidates without coordinates", zap.String("query", q))
		}
	}
	switch res.Kind {
	case client.ResolutionEmpty:
		observability.SearchesTotal.WithLabelValues("no_results").Inc()
		o.settle(StateNoResults, nil)
		o.presenter.RenderNoResults()
		logger.Debug("no locations found", zap.String("query", q), zap.String("country", countryCode))
		return nil

	case client.ResolutionFailed:
		observability.SearchesTotal.WithLabelValues("failed").Inc()
		o.settle(StateAPIError, nil)
		o.presenter.RenderAPIError()
		logger.Warn("location lookup failed",
			zap.String("query", q),
			zap.String("category", string(client.CategorizeError(res.Err))),
			zap.Error(res.Err),
		)
		return &ResolutionFailure{Query: q, Err: res.Err}

	case client.ResolutionFound:
		if len(res.Candidates) == 1 {
			observability.SearchesTotal.WithLabelValues("single").Inc()
			logger.Debug("location resolved", zap.String("query", q), zap.Duration("duration", time.Since(start)))
			return o.fetchAndRender(ctx, res.Candidates[0])
		}
		observability.SearchesTotal.WithLabelValues("ambiguous").Inc()
		o.settle(StateDisambiguating, res.Candidates)
		o.presenter.RenderDisambiguation(append([]models.Location(nil), res.Candidates...), o.selectCandidate)
		return nil
	}
	return fmt.Errorf("unexpected resolution kind %s", res.Kind)
}

// withCoordinates drops candidates that cannot be fetched. A Found result
// left with no candidates becomes Empty.
func withCoordinates(res client.Resolution) client.Resolution {
	kept := make([]models.Location, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		if c.HasCoordinates() {
			kept = append(kept, c)
		}
	}
	return client.Found(kept)
}

// selectCandidate is handed to the presenter during disambiguation.
func (o *Orchestrator) selectCandidate(ctx context.Context, loc models.Location) error {
	return o.fetchAndRender(ctx, loc)
}

// ShowLocation fetches and renders a known location, skipping resolution.
func (o *Orchestrator) ShowLocation(ctx context.Context, loc models.Location) error {
	return o.fetchAndRender(ctx, loc)
}

// LoadStartup shows the saved location if there is one, otherwise asks geo
// for a fix. With neither, the orchestrator stays Idle.
func (o *Orchestrator) LoadStartup(ctx context.Context, geo GeolocationProvider) error {
	logger := observability.LoggerFrom(ctx, o.logger)

	if o.store != nil {
		saved, ok, err := o.store.GetSaved(ctx)
		switch {
		case err != nil:
			logger.Warn("failed to load saved location", zap.Error(err))
		case ok && saved.HasCoordinates():
			return o.fetchAndRender(ctx, saved)
		}
	}
	if geo == nil {
		return nil
	}
	lat, lon, ok := geo.Locate(ctx)
	if !ok {
		logger.Debug("geolocation unavailable")
		return nil
	}
	return o.OnGeolocation(ctx, lat, lon)
}

// OnGeolocation names a position fix and shows its weather. Naming failures
// fall back to a generic name.
func (o *Orchestrator) OnGeolocation(ctx context.Context, latitude, longitude float64) error {
	if err := validation.ValidateCoordinates(latitude, longitude); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	loc, err := o.namer.Reverse(ctx, latitude, longitude)
	if err != nil {
		observability.LoggerFrom(ctx, o.logger).Warn("reverse geocoding failed",
			zap.Float64("latitude", latitude),
			zap.Float64("longitude", longitude),
			zap.Error(err),
		)
		loc = geolocate.Fallback(latitude, longitude)
	}
	return o.fetchAndRender(ctx, loc)
}

// SaveCurrent stores the rendered location as a favorite and startup location.
func (o *Orchestrator) SaveCurrent(ctx context.Context) error {
	if o.store == nil {
		return ErrNoStore
	}
	loc, _, ok := o.Current()
	if !ok {
		return ErrNothingToSave
	}
	if err := o.store.Save(ctx, loc); err != nil {
		return fmt.Errorf("save favorite: %w", err)
	}
	return nil
}

// Favorites lists saved locations oldest first.
func (o *Orchestrator) Favorites(ctx context.Context) ([]models.Location, error) {
	if o.store == nil {
		return nil, ErrNoStore
	}
	return o.store.List(ctx)
}

// SelectFavorite shows the favorite at index (oldest first).
func (o *Orchestrator) SelectFavorite(ctx context.Context, index int) error {
	list, err := o.Favorites(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(list) {
		return fmt.Errorf("%w: index %d", ErrFavoriteNotFound, index)
	}
	return o.fetchAndRender(ctx, list[index])
}

// Rerender presents the current state again without fetching.
func (o *Orchestrator) Rerender() {
	o.mu.Lock()
	state := o.state
	candidates := append([]models.Location(nil), o.candidates...)
	view, hasView := o.viewLocked()
	o.mu.Unlock()

	switch state {
	case StateRendered:
		if hasView {
			o.presenter.RenderResults(view)
		}
	case StateNoResults:
		o.presenter.RenderNoResults()
	case StateAPIError:
		o.presenter.RenderAPIError()
	case StateDisambiguating:
		o.presenter.RenderDisambiguation(candidates, o.selectCandidate)
	case StateResolving, StateFetching:
		o.presenter.RenderLoading()
	}
}

// ToggleSystem flips between metric and imperial and re-renders.
func (o *Orchestrator) ToggleSystem() units.Preference {
	observability.UnitTogglesTotal.WithLabelValues("system").Inc()
	return o.changeUnits(func(p *units.Preference) bool {
		p.ToggleSystem()
		return true
	})
}

// SetTemperatureUnit selects a temperature unit. Selecting the active unit
// is a no-op and does not re-render.
func (o *Orchestrator) SetTemperatureUnit(u units.TempUnit) units.Preference {
	return o.changeUnits(func(p *units.Preference) bool {
		return countToggle("temperature", p.SetTemperature(u))
	})
}

// SetSpeedUnit selects a wind speed unit.
func (o *Orchestrator) SetSpeedUnit(u units.SpeedUnit) units.Preference {
	return o.changeUnits(func(p *units.Preference) bool {
		return countToggle("speed", p.SetSpeed(u))
	})
}

// SetPrecipitationUnit selects a precipitation unit.
func (o *Orchestrator) SetPrecipitationUnit(u units.PrecipUnit) units.Preference {
	return o.changeUnits(func(p *units.Preference) bool {
		return countToggle("precipitation", p.SetPrecipitation(u))
	})
}

func countToggle(kind string, changed bool) bool {
	if changed {
		observability.UnitTogglesTotal.WithLabelValues(kind).Inc()
	}
	return changed
}

// changeUnits applies fn to the preference and, if it changed and a result
// is showing, re-renders from the stored canonical snapshot.
func (o *Orchestrator) changeUnits(fn func(*units.Preference) bool) units.Preference {
	o.mu.Lock()
	changed := fn(&o.pref)
	pref := o.pref
	view, hasView := o.viewLocked()
	o.mu.Unlock()

	if changed && hasView {
		o.presenter.RenderResults(view)
	}
	return pref
}

// fetchAndRender is the single path into Rendered.
func (o *Orchestrator) fetchAndRender(ctx context.Context, loc models.Location) error {
	logger := observability.LoggerFrom(ctx, o.logger)
	if !loc.HasCoordinates() {
		observability.FetchesTotal.WithLabelValues("invalid_location").Inc()
		return fmt.Errorf("%w: %q", ErrInvalidLocation, loc.DisplayName())
	}

	o.setState(StateFetching)
	o.presenter.RenderLoading()

	start := time.Now()
	snapshot, err := o.fetcher.Fetch(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		observability.FetchesTotal.WithLabelValues("fetch_failed").Inc()
		o.settle(StateAPIError, nil)
		o.presenter.RenderAPIError()
		logger.Warn("forecast fetch failed",
			zap.String("location", loc.DisplayName()),
			zap.String("category", string(client.CategorizeError(err))),
			zap.Error(err),
		)
		return &FetchFailure{Location: loc, Err: err}
	}

	o.mu.Lock()
	o.state = StateRendered
	o.location = &loc
	o.snapshot = &snapshot
	o.candidates = nil
	view, _ := o.viewLocked()
	o.mu.Unlock()

	observability.FetchesTotal.WithLabelValues("rendered").Inc()
	observability.RecordLocationView(loc.Name)
	logger.Debug("weather rendered",
		zap.String("location", loc.DisplayName()),
		zap.Duration("duration", time.Since(start)),
	)
	o.presenter.RenderResults(view)
	return nil
}

// viewLocked builds the results view; callers hold o.mu.
func (o *Orchestrator) viewLocked() (View, bool) {
	if o.state != StateRendered || o.location == nil || o.snapshot == nil {
		return View{}, false
	}
	return BuildView(*o.location, *o.snapshot, o.pref), true
}

func (o *Orchestrator) swapState(s State) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	prev := o.state
	o.state = s
	return prev
}

// restoreState puts prev back only if nothing moved the state off expect in
// the meantime, so a fetch that completed concurrently is not overwritten.
func (o *Orchestrator) restoreState(expect, prev State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == expect {
		o.state = prev
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// settle moves to a terminal non-result state and drops the previous result
// so it can never be shown again.
func (o *Orchestrator) settle(s State, candidates []models.Location) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
	o.location = nil
	o.snapshot = nil
	o.candidates = append([]models.Location(nil), candidates...)
}

// IsUserError reports whether err should be shown to the user as a prompt
// rather than as a generic error page.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidLocation) ||
		errors.Is(err, ErrFavoriteNotFound) ||
		errors.Is(err, ErrNothingToSave)
}
