package fake

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/model"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/source"
)

var sources = []string{"Fornecedor A", "Fornecedor B", "Fornecedor C"}

// Client 基于伪随机数的模拟数据源，相同种子产生相同数据。
// 不是并发安全的。
type Client struct {
	rnd *rand.Rand
	now func() time.Time
}

// NewClient 创建模拟数据源，seed 为 0 时按当前时间取种子
func NewClient(seed int64) *Client {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Client{
		rnd: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// WithClock 替换时钟，返回自身
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Ensure Client implements source.Provider
var _ source.Provider = (*Client)(nil)

// FetchIdentifiers 生成 ALERT-00001 ... 形式的 ID，忽略 since
func (c *Client) FetchIdentifiers(ctx context.Context, limit int, _ *time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrSourceUnavailable, err)
	}
	ids := make([]string, 0, limit)
	for i := 1; i <= limit; i++ {
		ids = append(ids, fmt.Sprintf("ALERT-%05d", i))
	}
	return ids, nil
}

// FetchDetail 随机生成一条告警
func (c *Client) FetchDetail(ctx context.Context, id string) (model.AlertRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.AlertRecord{}, fmt.Errorf("%w: %s: %v", source.ErrDetailUnavailable, id, err)
	}

	creation := model.DateOf(c.now()).AddDate(0, 0, -c.between(1, 90))
	status := pick(c.rnd, model.Statuses)

	var resolution *time.Time
	if model.IsTerminalStatus(status) {
		r := creation.AddDate(0, 0, c.between(1, 30))
		resolution = &r
	}

	return model.AlertRecord{
		AlertID:        id,
		TypeOfAlert:    pick(c.rnd, model.AlertTypes),
		Status:         status,
		AssignedTo:     fmt.Sprintf("usuario%d@mercadolivre.com", c.between(1, 20)),
		CreationDate:   creation,
		ResolutionDate: resolution,
		ImpactLevel:    pick(c.rnd, model.ImpactLevels),
		Description:    fmt.Sprintf("Descrição teste - %s", id),
		Source:         pick(c.rnd, sources),
		Priority:       c.between(1, 5),
	}, nil
}

// between 返回 [lo, hi] 闭区间内的整数
func (c *Client) between(lo, hi int) int {
	return lo + c.rnd.Intn(hi-lo+1)
}

func pick(rnd *rand.Rand, values []string) string {
	return values[rnd.Intn(len(values))]
}
