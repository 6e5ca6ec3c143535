package web

import (
	"context"
	"errors"
	"sync"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/orchestrator"
)

// ErrNoSuchCandidate is returned by Select for a stale or out-of-range index.
var ErrNoSuchCandidate = errors.New("no such candidate")

// PageKind is what the results panel currently shows.
type PageKind string

const (
	PageEmpty          PageKind = "empty"
	PageLoading        PageKind = "loading"
	PageResults        PageKind = "results"
	PageNoResults      PageKind = "no_results"
	PageAPIError       PageKind = "api_error"
	PageDisambiguation PageKind = "disambiguation"
)

// PageState is the last thing the orchestrator rendered. Notice holds an
// invalid-input message shown on top of whatever Kind is.
type PageState struct {
	Kind       PageKind
	View       *orchestrator.View
	Candidates []models.Location
	Notice     string
}

// PagePresenter records renders so a handler can turn them into HTML or
// JSON after the orchestrator call returns.
type PagePresenter struct {
	mu       sync.Mutex
	state    PageState
	onSelect orchestrator.SelectFunc
}

var _ orchestrator.Presenter = (*PagePresenter)(nil)

// NewPagePresenter returns a presenter showing the empty page.
func NewPagePresenter() *PagePresenter {
	return &PagePresenter{state: PageState{Kind: PageEmpty}}
}

func (p *PagePresenter) RenderLoading() {
	p.set(PageState{Kind: PageLoading}, nil)
}

func (p *PagePresenter) RenderResults(view orchestrator.View) {
	p.set(PageState{Kind: PageResults, View: &view}, nil)
}

func (p *PagePresenter) RenderNoResults() {
	p.set(PageState{Kind: PageNoResults}, nil)
}

func (p *PagePresenter) RenderAPIError() {
	p.set(PageState{Kind: PageAPIError}, nil)
}

func (p *PagePresenter) RenderDisambiguation(candidates []models.Location, onSelect orchestrator.SelectFunc) {
	p.set(PageState{
		Kind:       PageDisambiguation,
		Candidates: append([]models.Location(nil), candidates...),
	}, onSelect)
}

// RenderInvalidInput keeps the current panel and adds the message.
func (p *PagePresenter) RenderInvalidInput(message string) {
	p.mu.Lock()
	p.state.Notice = message
	p.mu.Unlock()
}

func (p *PagePresenter) set(s PageState, onSelect orchestrator.SelectFunc) {
	p.mu.Lock()
	p.state = s
	p.onSelect = onSelect
	p.mu.Unlock()
}

// State returns a copy of the recorded page.
func (p *PagePresenter) State() PageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyLocked()
}

// TakeState returns a copy of the recorded page and clears the notice so it
// is shown once.
func (p *PagePresenter) TakeState() PageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.copyLocked()
	p.state.Notice = ""
	return s
}

func (p *PagePresenter) copyLocked() PageState {
	s := p.state
	s.Candidates = append([]models.Location(nil), p.state.Candidates...)
	return s
}

// Select picks a disambiguation candidate by zero-based index and runs the
// orchestrator callback outside the lock.
func (p *PagePresenter) Select(ctx context.Context, index int) error {
	p.mu.Lock()
	if p.state.Kind != PageDisambiguation || p.onSelect == nil || index < 0 || index >= len(p.state.Candidates) {
		p.mu.Unlock()
		return ErrNoSuchCandidate
	}
	loc := p.state.Candidates[index]
	onSelect := p.onSelect
	p.mu.Unlock()

	return onSelect(ctx, loc)
}
