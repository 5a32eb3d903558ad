package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/aeropoint/aqfetch/internal/fetch"
	"github.com/aeropoint/aqfetch/internal/httpclient"
)

// JSONFeed is the batch adapter for providers exposing a JSON measurements
// endpoint. It fetches the whole payload in one call and hands the records to
// the pipeline for canonicalization.
type JSONFeed struct {
	client *httpclient.Client
}

// NewJSONFeed wraps the shared HTTP client.
func NewJSONFeed(client *httpclient.Client) *JSONFeed {
	return &JSONFeed{client: client}
}

// Name implements fetch.Adapter.
func (a *JSONFeed) Name() string { return "jsonfeed" }

type jsonFeedPayload struct {
	Measurements []jsonFeedRecord `json:"measurements"`
}

type jsonFeedRecord struct {
	Parameter string   `json:"parameter"`
	Value     float64  `json:"value"`
	Unit      string   `json:"unit"`
	DateUTC   string   `json:"dateUtc"`
	DateLocal string   `json:"dateLocal"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Location  string   `json:"location"`
	City      string   `json:"city"`
	Country   string   `json:"country"`
}

// FetchBatch pulls the provider's measurement list. A non-zero query window
// is forwarded as a `since` parameter; providers that ignore it return their
// full current feed.
func (a *JSONFeed) FetchBatch(ctx context.Context, source fetch.SourceConfig) ([]fetch.Measurement, error) {
	endpoint, err := buildURL(source)
	if err != nil {
		return nil, err
	}

	body, err := a.client.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload jsonFeedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse feed from %s: %w", source.URL, err)
	}

	out := make([]fetch.Measurement, 0, len(payload.Measurements))
	for _, rec := range payload.Measurements {
		m := fetch.Measurement{
			Parameter: rec.Parameter,
			Value:     rec.Value,
			Unit:      rec.Unit,
			Location:  rec.Location,
			City:      rec.City,
			Country:   rec.Country,
			Date:      fetch.MeasurementDate{Local: rec.DateLocal},
		}
		if rec.DateUTC != "" {
			if t, err := time.Parse(time.RFC3339, rec.DateUTC); err == nil {
				m.Date.UTC = t.UTC()
			}
		}
		if rec.Latitude != nil && rec.Longitude != nil {
			m.Coordinates = &fetch.Coordinates{
				Latitude:  *rec.Latitude,
				Longitude: *rec.Longitude,
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func buildURL(source fetch.SourceConfig) (string, error) {
	u, err := url.Parse(source.URL)
	if err != nil {
		return "", fmt.Errorf("parse source url %q: %w", source.URL, err)
	}
	q := u.Query()
	if !source.QueryFrom.IsZero() {
		q.Set("since", source.QueryFrom.UTC().Format(time.RFC3339))
	}
	if source.Credentials != "" {
		q.Set("token", source.Credentials)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
