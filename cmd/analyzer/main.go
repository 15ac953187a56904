// Package main 是会话采集质量分析工具。
// 用法:
//
//	analyzer session.csv [more.csv ...]
//	analyzer -compare a.csv b.json
//
// 逐会话输出采样时序、各传感器基线/峰值/SNR 与冗余度，并估计固件积分时间；
// -compare 模式每个会话输出一行用于对比不同采集配置。
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"transit-direction-validator/internal/analysis"
	"transit-direction-validator/internal/ingest"
)

func main() {
	var (
		compare  bool
		logLevel string
	)
	flag.BoolVar(&compare, "compare", false, "多会话对比模式")
	flag.StringVar(&logLevel, "log-level", "warn", "日志级别")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "用法: %s [-compare] <session.csv|session.json>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	logger := newLogger(logLevel)
	defer logger.Sync()

	var sessions []analysis.SessionStats
	failed := 0
	for _, path := range flag.Args() {
		sess, err := ingest.LoadFile(path)
		if err != nil {
			logger.Error("加载会话失败", zap.String("file", path), zap.Error(err))
			failed++
			continue
		}
		stats := analysis.Analyze(filepath.Base(path), sess.Readings)
		logger.Debug("会话分析完成",
			zap.String("file", path),
			zap.Int("readings", len(sess.Readings)),
			zap.String("integration_time", stats.IntegrationTime),
		)

		if compare && flag.NArg() > 1 {
			sessions = append(sessions, stats)
			continue
		}
		if err := analysis.Render(os.Stdout, stats); err != nil {
			logger.Error("输出失败", zap.Error(err))
			os.Exit(1)
		}
	}

	if len(sessions) > 0 {
		if err := analysis.RenderComparison(os.Stdout, sessions); err != nil {
			logger.Error("输出失败", zap.Error(err))
			os.Exit(1)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.WarnLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.WarnLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
