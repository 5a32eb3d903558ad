package adapters

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

// HTMLTable is the streaming adapter for providers that publish their latest
// readings as an HTML table. Rows are expected as
// location | parameter | value | unit | local time.
type HTMLTable struct {
	userAgent string
}

// NewHTMLTable builds the adapter.
func NewHTMLTable() *HTMLTable {
	return &HTMLTable{
		userAgent: "aqfetch/1.0 (+https://github.com/aeropoint/aqfetch)",
	}
}

// Name implements fetch.Adapter.
func (a *HTMLTable) Name() string { return "htmltable" }

// FetchStream scrapes the source page, emitting one result per table row as
// it is parsed. Scrape errors surface as typed error results; the channel is
// always closed when the visit ends.
func (a *HTMLTable) FetchStream(ctx context.Context, source fetch.SourceConfig) (<-chan fetch.Result, error) {
	out := make(chan fetch.Result, 64)

	collector := colly.NewCollector(
		colly.UserAgent(a.userAgent),
		colly.StdlibContext(ctx),
	)

	collector.OnHTML("table tbody tr", func(e *colly.HTMLElement) {
		m, err := parseRow(e)
		if err != nil {
			select {
			case out <- fetch.Result{Err: err}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- fetch.Result{Measurement: m}:
		case <-ctx.Done():
		}
	})

	collector.OnError(func(_ *colly.Response, err error) {
		select {
		case out <- fetch.Result{Err: fmt.Errorf("scrape %s: %w", source.URL, err)}:
		case <-ctx.Done():
		}
	})

	go func() {
		defer close(out)
		if err := collector.Visit(source.URL); err != nil {
			select {
			case out <- fetch.Result{Err: fmt.Errorf("visit %s: %w", source.URL, err)}:
			case <-ctx.Done():
			}
			return
		}
		collector.Wait()
	}()

	return out, nil
}

func parseRow(e *colly.HTMLElement) (fetch.Measurement, error) {
	var cells []string
	e.ForEach("td", func(_ int, td *colly.HTMLElement) {
		cells = append(cells, strings.TrimSpace(td.Text))
	})
	if len(cells) < 5 {
		return fetch.Measurement{}, fmt.Errorf("table row has %d cells, want 5", len(cells))
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(cells[2], ",", "."), 64)
	if err != nil {
		return fetch.Measurement{}, fmt.Errorf("parse value %q: %w", cells[2], err)
	}

	m := fetch.Measurement{
		Location:  cells[0],
		Parameter: cells[1],
		Value:     value,
		Unit:      cells[3],
		Date:      fetch.MeasurementDate{Local: cells[4]},
	}
	// Providers publish local times in RFC 3339 or a bare minute format;
	// anything else is left for validation to reject.
	if _, err := time.Parse(time.RFC3339, cells[4]); err != nil {
		if t, err := time.Parse("2006-01-02 15:04", cells[4]); err == nil {
			m.Date.Local = t.Format(time.RFC3339)
		}
	}
	return m, nil
}
