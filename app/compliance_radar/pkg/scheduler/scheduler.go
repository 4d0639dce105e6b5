package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job 一次定时执行的任务
type Job func(ctx context.Context) error

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parse 解析标准 5 段 cron 表达式，例如 "0 8 * * *"（每天 8 点）、"0 8 * * 1-5"（工作日 8 点）
func Parse(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty cron expression")
	}
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return sched, nil
}

// Next 返回 now 之后的下一次执行时间
func Next(spec string, now time.Time) (time.Time, error) {
	sched, err := Parse(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now), nil
}

// Scheduler 按 cron 表达式串行执行任务，上一次未结束不会开始下一次
type Scheduler struct {
	sched cron.Schedule
	loc   *time.Location
	log   logrus.FieldLogger
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New 创建调度器，timezone 为空或 "Local" 时使用本地时区
func New(spec, timezone string, log logrus.FieldLogger) (*Scheduler, error) {
	sched, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	loc := time.Local
	if timezone != "" && timezone != "Local" {
		if loc, err = time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
	}
	return &Scheduler{sched: sched, loc: loc, log: log, now: time.Now, after: time.After}, nil
}

// Run 阻塞直到 ctx 结束。任务出错只记录日志，不影响后续调度。
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := s.now().In(s.loc)
		next := s.sched.Next(now)
		wait := next.Sub(now)
		s.log.Infof("下次执行时间 %s (%s 后)", next.Format("2006-01-02 15:04"), wait.Round(time.Second))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(wait):
		}

		if err := job(ctx); err != nil {
			s.log.Errorf("定时任务执行失败: %v", err)
		}
	}
}
