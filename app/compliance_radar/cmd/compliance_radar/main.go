package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/config"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/engine"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/logger"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/model"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/scheduler"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/source/factory"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/storage"
)

// app 一次进程内共享的依赖
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   *storage.Storage
	cleanup func()
}

func main() {
	var (
		flagConfig  string
		flagCount   int
		flagHistory int
		flagRunID   string
		flagExport  bool
	)

	rootCmd := &cobra.Command{
		Use:           "compliance_radar",
		Short:         "extract compliance alerts and build CSV reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "configs/config.yaml", "config path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run one extraction and write the dados/analise CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flagConfig)
			if err != nil {
				return err
			}
			defer a.cleanup()
			return a.runOnce(cmd.Context(), flagCount)
		},
	}
	runCmd.Flags().IntVar(&flagCount, "count", 0, "number of alerts to extract (default: alert_count from config)")

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "run the extraction on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flagConfig)
			if err != nil {
				return err
			}
			defer a.cleanup()

			s, err := scheduler.New(a.cfg.Schedule.Cron, a.cfg.Schedule.Timezone, a.log)
			if err != nil {
				return err
			}
			a.log.Infof("定时提取已启动 (cron: %s)", a.cfg.Schedule.Cron)
			err = s.Run(cmd.Context(), func(ctx context.Context) error {
				return a.runOnce(ctx, 0)
			})
			if errors.Is(err, context.Canceled) {
				a.log.Info("定时提取已停止")
				return nil
			}
			return err
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "list recent runs from the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flagConfig)
			if err != nil {
				return err
			}
			defer a.cleanup()
			if a.store == nil {
				return fmt.Errorf("history requires db.driver to be configured")
			}
			if flagRunID != "" {
				return a.showRun(cmd.Context(), flagRunID, flagExport)
			}
			runs, err := a.store.ListRuns(cmd.Context(), flagHistory)
			if err != nil {
				return err
			}
			for _, r := range runs {
				printRun(r)
			}
			return nil
		},
	}
	historyCmd.Flags().IntVar(&flagHistory, "limit", 20, "number of runs to show")
	historyCmd.Flags().StringVar(&flagRunID, "run", "", "show the stored aggregates of one run")
	historyCmd.Flags().BoolVar(&flagExport, "export", false, "with --run, write the stored run to CSV again")

	// 不带子命令时执行一次提取
	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
	rootCmd.AddCommand(runCmd, scheduleCmd, historyCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "compliance_radar: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// setup 加载配置、初始化日志和历史存储
func setup(configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("无法加载配置文件: %w", err)
	}

	lg, closeLog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		log.Printf("无法初始化日志: %v", err)
		return nil, err
	}

	a := &app{cfg: cfg, log: lg, cleanup: closeLog}

	// 如果配置了数据库信息，则尝试连接
	if cfg.DB.Driver != "" {
		s, err := storage.NewStorage(cfg.DB)
		if err != nil {
			lg.Errorf("无法连接数据库: %v. 将仅生成 CSV 文件。", err)
		} else {
			a.store = s
			a.cleanup = func() {
				s.Close()
				closeLog()
			}
			lg.Info("已成功连接到数据库")
		}
	}
	return a, nil
}

// runOnce 执行一次完整的提取
func (a *app) runOnce(ctx context.Context, count int) error {
	provider, err := factory.NewProvider(a.cfg, a.log)
	if err != nil {
		a.log.Errorf("数据源初始化失败: %v", err)
		return err
	}

	var store engine.Store
	if a.store != nil {
		store = a.store
	}

	res, err := engine.NewEngine(a.cfg, provider, store, a.log).Run(ctx, engine.RunOptions{AlertCount: count})
	if err != nil {
		a.log.Errorf("主流程出错: %v", err)
		return err
	}

	a.log.Info("处理完成!")
	a.log.Infof("原始数据: %s", res.DataPath)
	a.log.Infof("分析结果: %s", res.AnalysisPath)
	return nil
}

// showRun 打印一次运行的汇总，export 为 true 时重新导出 CSV
func (a *app) showRun(ctx context.Context, runID string, export bool) error {
	run, err := a.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	printRun(run)

	if export {
		res, err := engine.NewEngine(a.cfg, nil, a.store, a.log).ExportRun(ctx, a.store, runID)
		if err != nil {
			a.log.Errorf("重新导出失败: %v", err)
			return err
		}
		a.log.Infof("原始数据: %s", res.DataPath)
		a.log.Infof("分析结果: %s", res.AnalysisPath)
		return nil
	}

	rows, err := a.store.LoadAggregates(ctx, runID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Printf("  %-14s %-32s %5d  %s\n", r.Category, r.Item, r.Count, r.Percentage)
	}
	return nil
}

func printRun(r model.RunSummary) {
	line := fmt.Sprintf("%s  %s  %-9s  %d/%d  %s", r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
		r.Status, r.Collected, r.Requested, r.DataPath)
	if r.Error != "" {
		line += "  " + r.Error
	}
	fmt.Println(line)
}
