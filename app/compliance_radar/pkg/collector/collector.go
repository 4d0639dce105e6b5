package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/model"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/source"
)

// progressEvery 每处理多少条输出一次进度
const progressEvery = 10

// Collector 先取 ID 列表，再逐条取详情
type Collector struct {
	ids      source.IdentifierSource
	details  source.DetailSource
	log      logrus.FieldLogger
	daysBack int
	now      func() time.Time

	// Progress 可选的进度回调
	Progress func(processed, total int)
}

// New 创建采集器；daysBack > 0 时只拉取最近 daysBack 天的告警
func New(ids source.IdentifierSource, details source.DetailSource, log logrus.FieldLogger, daysBack int) *Collector {
	return &Collector{
		ids:      ids,
		details:  details,
		log:      log,
		daysBack: daysBack,
		now:      time.Now,
	}
}

// Collect 拉取 requestedCount 条告警。ID 列表失败直接返回；单条详情失败记录日志后跳过，不重试。
// 返回顺序与数据源一致。
func (c *Collector) Collect(ctx context.Context, requestedCount int) ([]model.AlertRecord, error) {
	c.log.Infof("开始提取 %d 条告警...", requestedCount)

	var since *time.Time
	if c.daysBack > 0 {
		s := model.DateOf(c.now()).AddDate(0, 0, -c.daysBack)
		since = &s
	}

	ids, err := c.ids.FetchIdentifiers(ctx, requestedCount, since)
	if err != nil {
		c.log.Errorf("告警提取失败: %v", err)
		return nil, fmt.Errorf("fetch identifiers: %w", err)
	}

	alerts := make([]model.AlertRecord, 0, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := c.details.FetchDetail(ctx, id)
		if err != nil {
			c.log.WithField("alert_id", id).Errorf("处理告警 %s 失败: %v", id, err)
		} else {
			alerts = append(alerts, rec)
		}

		processed := i + 1
		if processed%progressEvery == 0 {
			c.log.Infof("进度: %d/%d 条告警已处理", processed, requestedCount)
			if c.Progress != nil {
				c.Progress(processed, requestedCount)
			}
		}
	}

	c.log.Infof("提取完成，成功获取 %d 条告警", len(alerts))
	return alerts, nil
}
