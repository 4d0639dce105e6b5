package source

import (
	"context"
	"errors"
	"time"

	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/model"
)

var (
	// ErrSourceUnavailable 告警 ID 列表获取失败，本次运行终止
	ErrSourceUnavailable = errors.New("alert source unavailable")
	// ErrDetailUnavailable 单条告警详情获取失败，跳过该条继续
	ErrDetailUnavailable = errors.New("alert detail unavailable")
)

// IdentifierSource 提供告警 ID 列表
type IdentifierSource interface {
	// FetchIdentifiers 最多返回 limit 个 ID；since 非空时只取该日期之后的告警
	FetchIdentifiers(ctx context.Context, limit int, since *time.Time) ([]string, error)
}

// DetailSource 根据 ID 提供告警详情
type DetailSource interface {
	FetchDetail(ctx context.Context, id string) (model.AlertRecord, error)
}

// Provider 同时具备两种能力的数据源
type Provider interface {
	IdentifierSource
	DetailSource
}
