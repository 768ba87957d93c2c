package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/config"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/engine"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/logger"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/model"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/scheduler"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/scoring/factory"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/storage"
)

// summaryRuns --once 结束后展示的历史记录条数
const summaryRuns = 5

var (
	configPath string
	once       bool
	noHistory  bool
)

var rootCmd = &cobra.Command{
	Use:   "industry_radar",
	Short: "行业雷达：把新闻、政府公告和天气转换为行业影响快照",
	Long: `industry_radar 读取三个固定的输入文件，为每条新文本打分并标注行业影响，
写出 live 快照、追加历史记录，并生成全国动态、经营环境与风险/机会三类指标。

默认每小时运行一次，使用 --once 只运行一次。`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "配置文件路径")
	rootCmd.Flags().BoolVar(&once, "once", false, "只运行一次后退出")
	rootCmd.Flags().BoolVar(&noHistory, "no-history", false, "本次运行不追加历史记录")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// 1. 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("无法加载配置文件: %v", err)
		return err
	}

	// 2. 初始化日志
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Printf("无法初始化日志: %v", err)
		return err
	}
	logger.Log.Info("启动行业雷达...")

	// 3. 输出目录是唯一的致命前提
	files := storage.NewFileStore(cfg.Paths.OutputDir, cfg.Paths.HistoryDir)
	if err := files.EnsureDirs(); err != nil {
		logger.Log.Errorf("无法创建输出目录: %v", err)
		return err
	}

	// 4. 可选的数据库镜像
	var mirror engine.Mirror
	if cfg.DB.Host != "" {
		st, err := storage.NewStorage(ctx, cfg.DB)
		if err != nil {
			logger.Log.Errorf("无法连接数据库: %v. 将仅写入本地文件。", err)
		} else {
			defer st.Close()
			mirror = st
			logger.Log.Info("已成功连接到数据库")
		}
	} else {
		logger.Log.Info("未配置数据库信息，跳过数据库连接")
	}

	// 5. 打分后端
	guard, backend, err := factory.NewGuard(ctx, cfg)
	if err != nil {
		logger.Log.Errorf("打分后端初始化失败: %v", err)
		return err
	}
	logger.Log.Infof("打分后端: %s", backend.Name())

	eng := engine.NewEngine(cfg, guard, files, mirror)
	opts := engine.RunOptions{SaveHistory: !noHistory}
	sched := scheduler.New(func(ctx context.Context) error {
		_, err := eng.Run(ctx, opts)
		return err
	}, cfg.Scheduler.Interval, cfg.Scheduler.Poll)

	if !once {
		return sched.Run(ctx)
	}

	if err := sched.RunOnce(ctx); err != nil {
		logger.Log.Errorf("运行失败: %v", err)
	}
	printSummary(eng, files, guard.Failures())
	return nil
}

// printSummary 输出本次运行统计与最近几次历史记录
func printSummary(eng *engine.Engine, files *storage.FileStore, failures int64) {
	stats := eng.LastStats()
	fmt.Printf("本次运行: %d 个事件, 新增指纹 %d 条, 协作方降级 %d 次\n", stats.Events, stats.CacheAdded, failures)
	for _, src := range []model.Source{model.SourceNews, model.SourceGovernment, model.SourceWeather} {
		if st, ok := stats.Sources[src]; ok {
			fmt.Printf("  %-10s 新增 %d, 命中缓存 %d, 跳过 %d\n", src, st.New, st.Cached, st.Skipped)
		}
	}
	if len(stats.Absent) > 0 {
		fmt.Printf("  缺失来源: %v\n", stats.Absent)
	}

	history, err := files.ReadHistory(summaryRuns)
	if err != nil {
		logger.Log.Warnf("读取历史记录失败: %v", err)
		return
	}
	if len(history) == 0 {
		return
	}
	fmt.Printf("最近 %d 次运行:\n", len(history))
	for _, snap := range history {
		fmt.Printf("  %s  事件 %3d  总体得分 %+.4f\n", snap.RunTimestamp, snap.EventsCount, snap.OverallScore)
	}
}
