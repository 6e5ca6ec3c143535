package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/kjstillabower/weather-lookup/internal/models"
	"github.com/kjstillabower/weather-lookup/internal/orchestrator"
)

// textPresenter prints each render to out. It keeps the last candidate list
// so --pick can choose from it.
type textPresenter struct {
	out io.Writer

	mu         sync.Mutex
	candidates []models.Location
	onSelect   orchestrator.SelectFunc
}

var _ orchestrator.Presenter = (*textPresenter)(nil)

func newTextPresenter(out io.Writer) *textPresenter {
	return &textPresenter{out: out}
}

func (p *textPresenter) RenderLoading() {}

func (p *textPresenter) RenderNoResults() {
	fmt.Fprintln(p.out, "No search result found!")
}

func (p *textPresenter) RenderAPIError() {
	fmt.Fprintln(p.out, "Something went wrong: we couldn't connect to the server (API error). Please try again in a few moments.")
}

func (p *textPresenter) RenderInvalidInput(message string) {
	fmt.Fprintf(p.out, "Invalid input: %s\n", message)
}

func (p *textPresenter) RenderDisambiguation(candidates []models.Location, onSelect orchestrator.SelectFunc) {
	p.mu.Lock()
	p.candidates = append([]models.Location(nil), candidates...)
	p.onSelect = onSelect
	p.mu.Unlock()

	fmt.Fprintln(p.out, "Several places match; rerun with --pick N:")
	for i, c := range candidates {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, c.DisplayName())
	}
}

// pick runs the disambiguation callback for the 1-based choice n.
func (p *textPresenter) pick(n int) (orchestrator.SelectFunc, models.Location, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.onSelect == nil {
		return nil, models.Location{}, fmt.Errorf("--pick given but the query was not ambiguous")
	}
	if n < 1 || n > len(p.candidates) {
		return nil, models.Location{}, fmt.Errorf("--pick must be between 1 and %d", len(p.candidates))
	}
	return p.onSelect, p.candidates[n-1], nil
}

func (p *textPresenter) RenderResults(v orchestrator.View) {
	u := v.Units
	c := v.Current
	fmt.Fprintln(p.out, v.DisplayName)
	fmt.Fprintf(p.out, "%s · %s\n\n", c.Time.Format("Monday, Jan 2, 2006 15:04"), c.Description)

	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Temperature\t%g%s (feels like %g%s)\n", c.Temperature, u.Temperature, c.FeelsLike, u.Temperature)
	fmt.Fprintf(tw, "Humidity\t%g%%\n", c.Humidity)
	fmt.Fprintf(tw, "Wind\t%g %s\n", c.WindSpeed, u.Speed)
	fmt.Fprintf(tw, "Precipitation\t%g %s\n", c.Precipitation, u.Precipitation)
	if c.Visibility != nil {
		fmt.Fprintf(tw, "Visibility\t%g %s\n", *c.Visibility, u.Visibility)
	}
	if c.UVIndex != nil {
		fmt.Fprintf(tw, "UV index\t%g\n", *c.UVIndex)
	}
	if c.Pressure != nil {
		fmt.Fprintf(tw, "Pressure\t%g %s\n", *c.Pressure, u.Pressure)
	}
	if c.Sunrise != nil && c.Sunset != nil {
		fmt.Fprintf(tw, "Sun\t%s - %s\n", c.Sunrise.Format("15:04"), c.Sunset.Format("15:04"))
	}
	_ = tw.Flush()

	if len(v.Daily) > 0 {
		fmt.Fprintln(p.out, "\nDaily")
		tw = tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
		for _, d := range v.Daily {
			fmt.Fprintf(tw, "  %s\t%g° / %g°\t%g %s\t%s\n", d.DayShort, d.TempMax, d.TempMin, d.Precipitation, u.Precipitation, d.Description)
		}
		_ = tw.Flush()
	}

	if len(v.Next24) > 0 {
		fmt.Fprintln(p.out, "\nNext hours")
		tw = tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
		for _, h := range v.Next24 {
			fmt.Fprintf(tw, "  %s\t%g°\t%d%%\t%s\n", strings.TrimSpace(h.Label), h.Temperature, h.PrecipitationProbability, h.Description)
		}
		_ = tw.Flush()
	}
}
