// Package main 是穿越方向检测验证器的入口点。
// 在标注语料上运行 检测策略 × 参数档位 的全部组合，输出准确率报告，
// 并可选输出 JSONL 记录、最佳运行的信号图与训练窗口。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/dataset"
	"transit-direction-validator/internal/output/jsonl"
	"transit-direction-validator/internal/output/sessionplot"
	"transit-direction-validator/internal/stats/accuracy"
	"transit-direction-validator/internal/validation"
)

// unitRecord 单元结果记录内容
type unitRecord struct {
	Run string `json:"run"`
	validation.UnitResult
}

// runRecord 运行汇总记录内容（不含逐单元结果）
type runRecord struct {
	Name string `json:"name"`
	validation.Run
	Stats     accuracy.Stats `json:"stats"`
	ElapsedMs int64          `json:"elapsed_ms"`
	Best      bool           `json:"best"`
}

func main() {
	var (
		configPath string
		dataDir    string
		showUnits  bool
		strict     bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.StringVar(&dataDir, "data", "", "标注语料目录（覆盖配置 validation.data_dir）")
	flag.BoolVar(&showUnits, "units", true, "输出逐单元明细")
	flag.BoolVar(&strict, "strict", false, "最佳运行低于目标准确率时以退出码 2 结束")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if dataDir != "" {
		cfg.Validation.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "配置验证失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，取消验证")
		cancel()
	}()

	corpus, err := validation.LoadCorpus(cfg.Validation.DataDir)
	if err != nil {
		if errors.Is(err, validation.ErrDataDirMissing) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		logger.Error("加载语料失败", zap.Error(err))
		os.Exit(1)
	}
	counts := corpus.CountByClass()
	logger.Info("语料加载完成",
		zap.String("dir", corpus.Dir),
		zap.Int("units", len(corpus.Units)),
		zap.Int("skipped", len(corpus.Skipped)),
		zap.Any("per_class", counts),
	)
	for _, name := range corpus.Skipped {
		logger.Debug("无法识别标签，跳过", zap.String("file", name))
	}

	runs, err := validation.Runs(cfg.Validation)
	if err != nil {
		logger.Error("展开运行失败", zap.Error(err))
		os.Exit(1)
	}

	harness := validation.NewHarness(logger.Named("harness"), cfg.Validation.Concurrency)
	report, err := harness.Execute(ctx, corpus, runs, cfg.Validation.TargetAccuracy)
	if err != nil {
		logger.Error("验证中断", zap.Error(err))
		os.Exit(1)
	}

	if err := validation.Render(os.Stdout, report, validation.RenderOptions{Units: showUnits}); err != nil {
		logger.Error("输出报告失败", zap.Error(err))
	}

	if cfg.Output.ResultsEnabled {
		if err := writeResults(cfg, report); err != nil {
			logger.Error("写入结果失败", zap.Error(err))
		}
	}
	if cfg.Output.PlotsEnabled {
		n, err := plotBest(cfg, corpus, report)
		if err != nil {
			logger.Error("绘制信号图失败", zap.Error(err))
		} else {
			logger.Info("信号图已生成", zap.Int("plots", n))
		}
	}
	if cfg.Export.Enabled {
		n, err := exportWindows(cfg, corpus, report.RunID)
		if err != nil {
			logger.Error("导出训练窗口失败", zap.Error(err))
		} else {
			logger.Info("训练窗口已导出", zap.Int("samples", n))
		}
	}

	if strict && !report.TargetMet() {
		os.Exit(2)
	}
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// writeResults 逐单元与逐运行写入 results.jsonl
func writeResults(cfg *config.Config, report *validation.Report) error {
	w, err := jsonl.NewWriter(filepath.Join(cfg.Output.Dir, "results.jsonl"), cfg.Output.BufferSize)
	if err != nil {
		return err
	}

	for i, rr := range report.Runs {
		for _, ur := range rr.Results {
			if err := w.Write(jsonl.NewRecord(jsonl.KindUnit, report.RunID, unitRecord{Run: rr.Run.Name(), UnitResult: ur})); err != nil {
				w.Close()
				return err
			}
		}
		rec := runRecord{
			Name:      rr.Run.Name(),
			Run:       rr.Run,
			Stats:     rr.Stats,
			ElapsedMs: rr.Elapsed.Milliseconds(),
			Best:      i == report.Best,
		}
		if err := w.Write(jsonl.NewRecord(jsonl.KindRun, report.RunID, rec)); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// plotBest 为最佳运行的每个已加载单元绘制信号图
func plotBest(cfg *config.Config, corpus *validation.Corpus, report *validation.Report) (int, error) {
	best := report.BestRun()
	if best == nil {
		return 0, nil
	}
	p, err := sessionplot.NewPlotter(filepath.Join(cfg.Output.Dir, "plots", report.RunID))
	if err != nil {
		return 0, err
	}

	n := 0
	for i, u := range corpus.Units {
		if u.Err != nil {
			continue
		}
		if _, err := p.Plot(sessionplot.Unit{
			Name:     u.Name,
			Expected: u.Expected,
			Readings: u.Session.Readings,
			Result:   best.Results[i].Result,
		}, best.Run.Detection); err != nil {
			return n, fmt.Errorf("单元 %s: %w", u.Name, err)
		}
		n++
	}
	return n, nil
}

// exportWindows 将已加载单元转换为训练窗口写入 windows.jsonl
func exportWindows(cfg *config.Config, corpus *validation.Corpus, runID string) (int, error) {
	sessions := make([]dataset.Labeled, 0, len(corpus.Units))
	for _, u := range corpus.Units {
		if u.Err != nil {
			continue
		}
		sessions = append(sessions, dataset.Labeled{ID: u.Session.ID, Label: u.Expected, Readings: u.Session.Readings})
	}
	samples := dataset.NewBuilder(cfg.Export).Build(sessions)

	w, err := jsonl.NewWriter(filepath.Join(cfg.Output.Dir, "windows.jsonl"), cfg.Output.BufferSize)
	if err != nil {
		return 0, err
	}
	for _, s := range samples {
		rec := jsonl.WindowData{
			SessionID: s.SessionID,
			Label:     s.Label,
			Augmented: s.Augmented,
			Clipped:   s.Clipped,
			Window:    s.Rows(),
		}
		if err := w.Write(jsonl.NewRecord(jsonl.KindWindow, runID, rec)); err != nil {
			w.Close()
			return 0, err
		}
	}
	return len(samples), w.Close()
}
