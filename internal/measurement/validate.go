package measurement

import (
	"fmt"
	"math"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

// acceptedParameters is the fixed set of pollutant codes the platform stores.
var acceptedParameters = map[string]struct{}{
	"pm25": {},
	"pm10": {},
	"pm1":  {},
	"co":   {},
	"so2":  {},
	"no2":  {},
	"no":   {},
	"nox":  {},
	"o3":   {},
	"bc":   {},
}

// Accepted reports whether the (already unified) parameter code is one the
// platform stores. Records outside the set are dropped silently, not counted
// as failures.
func Accepted(parameter string) bool {
	_, ok := acceptedParameters[parameter]
	return ok
}

// Validate checks a normalized record against the canonical shape. It returns
// nil for a valid record, or a ValidationError carrying every violation
// found.
func Validate(m fetch.Measurement) *fetch.ValidationError {
	var violations []string

	if m.Parameter == "" {
		violations = append(violations, `requires property "parameter"`)
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		violations = append(violations, `property "value" is not a finite number`)
	}
	if m.Unit == "" {
		violations = append(violations, `requires property "unit"`)
	}
	if m.Date.UTC.IsZero() {
		violations = append(violations, `requires property "date.utc"`)
	}
	if m.Date.Local == "" {
		violations = append(violations, `requires property "date.local"`)
	}
	if m.Location == "" {
		violations = append(violations, `requires property "location"`)
	}
	if m.City == "" {
		violations = append(violations, `requires property "city"`)
	}
	if m.Country == "" {
		violations = append(violations, `requires property "country"`)
	}
	if m.SourceName == "" {
		violations = append(violations, `requires property "sourceName"`)
	}
	if m.SourceType == "" {
		violations = append(violations, `requires property "sourceType"`)
	}
	if c := m.Coordinates; c != nil {
		if c.Latitude < -90 || c.Latitude > 90 {
			violations = append(violations, fmt.Sprintf(`property "coordinates.latitude" out of range: %v`, c.Latitude))
		}
		if c.Longitude < -180 || c.Longitude > 180 {
			violations = append(violations, fmt.Sprintf(`property "coordinates.longitude" out of range: %v`, c.Longitude))
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &fetch.ValidationError{Measurement: m, Violations: violations}
}
