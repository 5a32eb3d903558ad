// Package measurement implements per-record canonicalization and validation
// for the fetch pipeline. All functions are pure and side-effect free; they
// take a record and return the adjusted record.
package measurement

import (
	"strings"
	"time"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

// Canonical unit strings produced by unit unification.
const (
	UnitPPM  = "ppm"
	UnitUGM3 = "µg/m³"
)

// CountryUnknown marks records that carry coordinates but no resolvable
// country, so consumers can tell "country unresolved" from "no location data".
const CountryUnknown = "99"

// Normalize applies every canonicalization stage in fixed order and returns
// the adjusted record. Stage order matters: dates first, then units, then
// parameter codes, then source defaults, then country inference.
func Normalize(m fetch.Measurement, src fetch.SourceConfig) fetch.Measurement {
	m = NormalizeDate(m)
	m = UnifyUnit(m)
	m = UnifyParameter(m)
	m = ApplyDefaults(m, src)
	m = InferCountry(m)
	return m
}

// NormalizeDate derives whichever half of the {utc, local} pair is missing.
// A local ISO string with an offset determines the UTC instant exactly; a UTC
// instant with no local string yields a Zulu-formatted local. Re-deriving
// from a completed pair is a no-op.
func NormalizeDate(m fetch.Measurement) fetch.Measurement {
	if m.Date.UTC.IsZero() && m.Date.Local != "" {
		if t, err := time.Parse(time.RFC3339, m.Date.Local); err == nil {
			m.Date.UTC = t.UTC()
		}
	}
	if m.Date.Local == "" && !m.Date.UTC.IsZero() {
		m.Date.Local = m.Date.UTC.UTC().Format(time.RFC3339)
	}
	return m
}

// UnifyUnit converts volumetric fractions to ppm and mass concentrations to
// µg/m³. Unrecognized units pass through unchanged.
func UnifyUnit(m fetch.Measurement) fetch.Measurement {
	switch strings.ToLower(strings.TrimSpace(m.Unit)) {
	case "pphm":
		m.Value /= 100
		m.Unit = UnitPPM
	case "ppb":
		m.Value /= 1000
		m.Unit = UnitPPM
	case "ppt":
		m.Value /= 1e6
		m.Unit = UnitPPM
	case "ppm":
		m.Unit = UnitPPM
	case "mg/m³", "mg/m3":
		m.Value *= 1000
		m.Unit = UnitUGM3
	case "µg/m³", "µg/m3", "ug/m3", "ug/m³":
		m.Unit = UnitUGM3
	}
	return m
}

// UnifyParameter lower-cases the parameter code and strips separator noise.
func UnifyParameter(m fetch.Measurement) fetch.Measurement {
	p := strings.ToLower(m.Parameter)
	p = strings.ReplaceAll(p, ".", "")
	p = strings.ReplaceAll(p, "_", "")
	m.Parameter = p
	return m
}

// ApplyDefaults fills record fields absent on the measurement from the
// source's configured defaults.
func ApplyDefaults(m fetch.Measurement, src fetch.SourceConfig) fetch.Measurement {
	if m.Location == "" {
		m.Location = src.Location
	}
	if m.City == "" {
		m.City = src.City
	}
	if m.Country == "" {
		m.Country = src.Country
	}
	if m.SourceName == "" {
		m.SourceName = src.Name
	}
	if m.SourceType == "" {
		if src.SourceType != "" {
			m.SourceType = src.SourceType
		} else {
			m.SourceType = "government"
		}
	}
	if src.Mobile {
		m.Mobile = true
	}
	return m
}

// InferCountry marks records that have coordinates but an empty country as
// country-unknown rather than leaving the field blank.
func InferCountry(m fetch.Measurement) fetch.Measurement {
	if m.Country == "" && m.Coordinates != nil {
		m.Country = CountryUnknown
	}
	return m
}
