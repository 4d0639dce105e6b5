package factory

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/compliance"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/config"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/fake"
)

func TestNewProvider(t *testing.T) {
	log := logrus.New()

	p, err := NewProvider(&config.Config{Provider: config.ProviderFake}, log)
	require.NoError(t, err)
	assert.IsType(t, &fake.Client{}, p)

	p, err = NewProvider(&config.Config{
		Provider: config.ProviderHTTP,
		HTTP: config.HTTPConfig{
			InternalBaseURL: "https://internal.example/alerts",
			PublicBaseURL:   "https://public.example/alerts",
			APIKey:          "k",
			Timeout:         5,
		},
	}, log)
	require.NoError(t, err)
	assert.IsType(t, &compliance.Client{}, p)

	_, err = NewProvider(&config.Config{Provider: config.ProviderHTTP}, log)
	assert.Error(t, err)

	_, err = NewProvider(&config.Config{Provider: "ftp"}, log)
	assert.Error(t, err)
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, rate.Inf, NewLimiter(config.ConcurrencyConfig{}).Limit())

	l := NewLimiter(config.ConcurrencyConfig{RPM: 120, QPS: 3})
	assert.Equal(t, rate.Limit(2), l.Limit())
	assert.Equal(t, 3, l.Burst())

	assert.Equal(t, 1, NewLimiter(config.ConcurrencyConfig{RPM: 60}).Burst())
}
