package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/analysis"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/collector"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/config"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/export"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/model"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/source"
)

// Store 运行历史存储，失败不影响本次运行
type Store interface {
	CreateRun(ctx context.Context, requested int) (string, error)
	SaveAlerts(ctx context.Context, runID string, records []model.AlertRecord) error
	SaveAggregates(ctx context.Context, runID string, rows []model.AggregateRow) error
	FinishRun(ctx context.Context, runID string, collected int, dataPath, analysisPath string) error
	FailRun(ctx context.Context, runID string, runErr error) error
}

// RunLoader 读取已保存的运行
type RunLoader interface {
	GetRun(ctx context.Context, runID string) (model.RunSummary, error)
	LoadAlerts(ctx context.Context, runID string) ([]model.AlertRecord, error)
	LoadAggregates(ctx context.Context, runID string) ([]model.AggregateRow, error)
}

// Engine 核心处理引擎
type Engine struct {
	cfg      *config.Config
	provider source.Provider
	store    Store
	exporter *export.Exporter
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewEngine 创建引擎实例，store 可以为 nil
func NewEngine(cfg *config.Config, provider source.Provider, store Store, log logrus.FieldLogger) *Engine {
	e := &Engine{
		cfg:      cfg,
		provider: provider,
		store:    store,
		log:      log,
		now:      time.Now,
	}
	e.exporter = export.NewExporter(cfg.Output.BaseName, cfg.Output.Labels)
	return e
}

// RunOptions 运行选项
type RunOptions struct {
	AlertCount       int // 0 时使用配置中的 alert_count
	ProgressCallback func(status string, progress int)
}

// Result 一次运行的结果
type Result struct {
	RunID        string
	Records      []model.AlertRecord
	Rows         []model.AggregateRow
	DataPath     string
	AnalysisPath string
}

// Run 执行一次提取：采集 -> 汇总 -> 导出 -> 保存历史
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	count := opts.AlertCount
	if count <= 0 {
		count = e.cfg.AlertCount
	}
	progress := func(status string, p int) {
		if opts.ProgressCallback != nil {
			opts.ProgressCallback(status, p)
		}
	}
	progress("starting", 0)
	// 目录和文件名共用同一个时间
	now := e.now()

	// 创建本次运行记录
	var runID string
	if e.store != nil {
		rid, err := e.store.CreateRun(ctx, count)
		if err != nil {
			e.log.Errorf("无法创建运行记录: %v", err)
		} else {
			runID = rid
		}
	}

	c := collector.New(e.provider, e.provider, e.log, e.cfg.DaysBack)
	c.Progress = func(processed, total int) {
		if total > 0 {
			progress("collecting", 10+processed*70/total) // 10% -> 80%
		}
	}
	records, err := c.Collect(ctx, count)
	if err != nil {
		e.fail(ctx, runID, err)
		return nil, err
	}

	progress("aggregating", 85)
	rows := analysis.Aggregate(records)

	progress("exporting", 90)
	dir := export.DailyDir(e.cfg.Output.BaseDir, now)
	dataPath, analysisPath, err := e.exporter.ExportAt(records, rows, dir, now)
	if err != nil {
		e.log.Errorf("导出失败: %v", err)
		err = fmt.Errorf("export: %w", err)
		e.fail(ctx, runID, err)
		return nil, err
	}
	e.log.Infof("数据已保存到: %s", dataPath)
	e.log.Infof("汇总分析已保存到: %s", analysisPath)

	if e.store != nil && runID != "" {
		e.persist(ctx, runID, records, rows, dataPath, analysisPath)
	}

	progress("completed", 100)
	return &Result{
		RunID:        runID,
		Records:      records,
		Rows:         rows,
		DataPath:     dataPath,
		AnalysisPath: analysisPath,
	}, nil
}

// ExportRun 将历史中保存的一次运行重新导出为 CSV
func (e *Engine) ExportRun(ctx context.Context, loader RunLoader, runID string) (*Result, error) {
	run, err := loader.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status == model.RunFailed {
		return nil, fmt.Errorf("run %s failed and has no stored alerts: %s", runID, run.Error)
	}
	records, err := loader.LoadAlerts(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	rows, err := loader.LoadAggregates(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}

	now := e.now()
	dataPath, analysisPath, err := e.exporter.ExportAt(records, rows, export.DailyDir(e.cfg.Output.BaseDir, now), now)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	e.log.Infof("运行 %s 已重新导出: %s, %s", runID, dataPath, analysisPath)
	return &Result{
		RunID:        runID,
		Records:      records,
		Rows:         rows,
		DataPath:     dataPath,
		AnalysisPath: analysisPath,
	}, nil
}

// fail 标记运行失败；ctx 可能已取消，仍然写入
func (e *Engine) fail(ctx context.Context, runID string, runErr error) {
	if e.store == nil || runID == "" {
		return
	}
	if err := e.store.FailRun(context.WithoutCancel(ctx), runID, runErr); err != nil {
		e.log.Errorf("更新运行记录失败 [%s]: %v", runID, err)
	}
}

func (e *Engine) persist(ctx context.Context, runID string, records []model.AlertRecord, rows []model.AggregateRow, dataPath, analysisPath string) {
	if err := e.store.SaveAlerts(ctx, runID, records); err != nil {
		e.log.Errorf("保存告警明细失败 [%s]: %v", runID, err)
	}
	if err := e.store.SaveAggregates(ctx, runID, rows); err != nil {
		e.log.Errorf("保存汇总结果失败 [%s]: %v", runID, err)
	}
	if err := e.store.FinishRun(ctx, runID, len(records), dataPath, analysisPath); err != nil {
		e.log.Errorf("更新运行记录失败 [%s]: %v", runID, err)
	}
}
