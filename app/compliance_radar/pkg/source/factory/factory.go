package factory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/compliance"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/config"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/fake"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/source"
)

// NewProvider 根据配置创建数据源实例
func NewProvider(cfg *config.Config, log logrus.FieldLogger) (source.Provider, error) {
	switch cfg.Provider {
	case "", config.ProviderFake:
		return fake.NewClient(cfg.Fake.Seed), nil

	case config.ProviderHTTP:
		if cfg.HTTP.APIKey == "" {
			return nil, fmt.Errorf("compliance api key is missing")
		}
		if cfg.HTTP.InternalBaseURL == "" || cfg.HTTP.PublicBaseURL == "" {
			return nil, fmt.Errorf("compliance base url is missing")
		}
		httpClient := &http.Client{Timeout: time.Duration(cfg.HTTP.Timeout) * time.Second}
		return compliance.NewClient(compliance.Options{
			InternalBaseURL: cfg.HTTP.InternalBaseURL,
			PublicBaseURL:   cfg.HTTP.PublicBaseURL,
			APIKey:          cfg.HTTP.APIKey,
			Status:          cfg.HTTP.Status,
			HTTPClient:      httpClient,
			Limiter:         NewLimiter(cfg.Concurrency),
			Logger:          log,
		}), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// NewLimiter 按 RPM/QPS 创建限流器，未配置时不限流
func NewLimiter(c config.ConcurrencyConfig) *rate.Limiter {
	if c.RPM <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := c.QPS
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(c.RPM)/60.0), burst)
}
