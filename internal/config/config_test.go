package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

const configYAML = `
sources:
  - name: acme-air
    adapter: jsonfeed
    url: https://api.acme-air.example/v1/measurements
    active: true
    offset: 3
    country: US
  - name: city-scrape
    adapter: htmltable
    url: https://city.example/air
    active: false
    source_type: research
    mobile: true
deployments:
  - name: feeds
    adapter: jsonfeed
    offset: 2
  - name: nightly
    resolution: daily
`

func loadFromYAML(t *testing.T, yaml string) (Config, error) {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return Load(v)
}

func TestLoadSourcesAndDeployments(t *testing.T) {
	cfg, err := loadFromYAML(t, configYAML)
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 2)
	require.Len(t, cfg.Deployments, 2)

	acme := cfg.Sources[0]
	require.Equal(t, "acme-air", acme.Name)
	require.Equal(t, "jsonfeed", acme.Adapter)
	require.True(t, acme.Active)
	require.Equal(t, 3, acme.OffsetHours)
	require.Equal(t, "US", acme.Country)

	scrape := cfg.Sources[1]
	require.False(t, scrape.Active)
	require.Equal(t, "research", scrape.SourceType)
	require.True(t, scrape.Mobile)

	require.Equal(t, "feeds", cfg.Deployments[0].Name)
	require.Equal(t, 2, cfg.Deployments[0].Offset)
	require.Equal(t, "daily", cfg.Deployments[1].Resolution)
}

func TestLoadRejectsInvalidSources(t *testing.T) {
	_, err := loadFromYAML(t, `
sources:
  - name: ""
    adapter: jsonfeed
`)
	require.Error(t, err)

	_, err = loadFromYAML(t, `
sources:
  - name: acme
    adapter: ""
`)
	require.Error(t, err)

	_, err = loadFromYAML(t, `
sources:
  - name: acme
    adapter: jsonfeed
  - name: acme
    adapter: htmltable
`)
	require.ErrorContains(t, err, "duplicate")
}

func TestInjectCredentialsFromEnv(t *testing.T) {
	t.Setenv("ACME_AIR", "secret-token")
	t.Setenv("CITY_SCRAPE", "unused")

	sources := []fetch.SourceConfig{
		{Name: "acme-air", Adapter: "jsonfeed"},
		{Name: "city-scrape", Adapter: "htmltable", Credentials: "explicit"},
	}
	InjectCredentials(sources)

	require.Equal(t, "secret-token", sources[0].Credentials)
	// Explicit config wins over the environment.
	require.Equal(t, "explicit", sources[1].Credentials)
}

func TestCredentialEnvKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "ACME_AIR", CredentialEnvKey("acme-air"))
	require.Equal(t, "AIR_NOW_US", CredentialEnvKey("air now.us"))
	require.Equal(t, "PLAIN", CredentialEnvKey("plain"))
}
