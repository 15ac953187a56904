// Package main 是实时穿越方向监控器的入口点。
// 订阅设备批次数据流，按会话累积读数；会话收到最后一批或空闲超时后
// 运行配置的检测策略，输出检测结果与采样节奏指标。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/core/detect"
	"transit-direction-validator/internal/core/store"
	"transit-direction-validator/internal/output/jsonl"
	"transit-direction-validator/internal/stats/cadence"
	"transit-direction-validator/internal/stream"
	"transit-direction-validator/internal/util/timeutil"
)

// 会话结束原因
const (
	reasonFinal    = "final"
	reasonIdle     = "idle"
	reasonShutdown = "shutdown"
)

type metricsSnapshot struct {
	// TsUnixNs 指标采集时间（纳秒）
	TsUnixNs int64 `json:"ts_unix_ns"`
	// Stream 连接指标
	Stream stream.ConnectionMetrics `json:"stream"`
	// Cadence 采样节奏
	Cadence cadence.Stats `json:"cadence"`
	// OpenSessions 累积中的会话数
	OpenSessions int `json:"open_sessions"`
	// Detections 已完成检测的会话数
	Detections int64 `json:"detections"`
	// DroppedBatches 会话结束后到达而被丢弃的批次数
	DroppedBatches int `json:"dropped_batches"`
}

// monitor 主循环状态（单 goroutine）
type monitor struct {
	logger     *zap.Logger
	runID      string
	detection  config.DetectionConfig
	detectFn   detect.Func
	sessions   *store.Store
	tracker    *cadence.Tracker
	client     *stream.Client
	results    *jsonl.Writer
	metrics    *jsonl.Writer
	idleNs     int64
	detections int64
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "配置验证失败: %v\n", err)
		os.Exit(1)
	}
	if cfg.Stream.URL == "" {
		fmt.Fprintln(os.Stderr, "stream.url 未配置")
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	method, err := cfg.Detection.MethodValue()
	if err != nil {
		logger.Error("检测策略无效", zap.Error(err))
		os.Exit(1)
	}
	fn, err := detect.For(method)
	if err != nil {
		logger.Error("检测策略无效", zap.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	client := stream.NewClient(&cfg.Stream, logger)
	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	err = client.Connect(startCtx)
	startCancel()
	if err != nil {
		logger.Error("数据流连接失败", zap.Error(err))
		os.Exit(1)
	}
	go client.Run(ctx)

	m := &monitor{
		logger:    logger.Named("monitor"),
		runID:     uuid.NewString(),
		detection: cfg.Detection,
		detectFn:  fn,
		sessions:  store.New(),
		tracker:   cadence.NewTracker(10000),
		client:    client,
		idleNs:    timeutil.MsToNano(int64(cfg.Stream.SessionIdleMs)),
	}
	if cfg.Output.ResultsEnabled {
		m.results, err = jsonl.NewWriter(filepath.Join(cfg.Output.Dir, "detections.jsonl"), cfg.Output.BufferSize)
		if err != nil {
			logger.Error("创建 detections writer 失败", zap.Error(err))
			os.Exit(1)
		}
		m.metrics, err = jsonl.NewWriter(filepath.Join(cfg.Output.Dir, "metrics.jsonl"), cfg.Output.BufferSize)
		if err != nil {
			logger.Error("创建 metrics writer 失败", zap.Error(err))
			os.Exit(1)
		}
	}

	m.logger.Info("监控启动",
		zap.String("run_id", m.runID),
		zap.String("method", method.String()),
		zap.String("params", cfg.Detection.String()),
	)
	m.run(ctx, cfg.Stream.SessionIdleMs, cfg.Output.MetricsIntervalMs)

	// 关闭前对剩余会话做最后一次检测
	for _, id := range m.sessions.IDs() {
		m.finish(id, reasonShutdown)
	}
	m.writeMetrics()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Close()
		if m.results != nil {
			_ = m.results.Close()
		}
		if m.metrics != nil {
			_ = m.metrics.Close()
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("关闭超时，强制退出")
	case <-done:
		logger.Info("关闭完成", zap.Int64("detections", m.detections))
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

func (m *monitor) run(ctx context.Context, idleMs, metricsIntervalMs int) {
	idleTicker := time.NewTicker(time.Duration(max(idleMs/2, 10)) * time.Millisecond)
	defer idleTicker.Stop()

	if metricsIntervalMs <= 0 {
		metricsIntervalMs = 10000
	}
	metricsTicker := time.NewTicker(time.Duration(metricsIntervalMs) * time.Millisecond)
	defer metricsTicker.Stop()

	batches := m.client.Batches()
	for {
		select {
		case <-ctx.Done():
			return

		case b, ok := <-batches:
			if !ok {
				return
			}
			if m.sessions.Closed(b.SessionID) {
				m.sessions.Append(b.SessionID, b.ArrivedNs, b.Readings, b.Final) // 计入 Dropped
				m.logger.Warn("会话已结束，丢弃迟到批次",
					zap.String("session_id", b.SessionID),
					zap.Int("readings", len(b.Readings)),
					zap.Int("dropped_total", m.sessions.Dropped()))
				continue
			}
			m.tracker.Observe(b.SessionID, b.ArrivedNs, b.Readings)
			if m.sessions.Append(b.SessionID, b.ArrivedNs, b.Readings, b.Final) {
				m.finish(b.SessionID, reasonFinal)
			}

		case <-idleTicker.C:
			for _, id := range m.sessions.Idle(timeutil.NowNano(), m.idleNs) {
				m.finish(id, reasonIdle)
			}

		case <-metricsTicker.C:
			m.writeMetrics()
		}
	}
}

// finish 取出会话并运行检测
func (m *monitor) finish(sessionID, reason string) {
	sess, ok := m.sessions.Take(sessionID)
	if !ok {
		return
	}
	m.tracker.Forget(sessionID)

	result := m.detectFn(sess.Readings, m.detection)
	m.detections++

	fields := []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("reason", reason),
		zap.Int("readings", len(sess.Readings)),
		zap.Int("batches", sess.Batches),
		zap.String("direction", string(result.Direction)),
		zap.Float64("confidence", result.Confidence),
		zap.Int64("side_a_max", result.SideAMax),
		zap.Int64("side_b_max", result.SideBMax),
	}
	if result.GapMs != nil {
		fields = append(fields, zap.Int64("gap_ms", *result.GapMs))
	}
	m.logger.Info("会话检测完成", fields...)

	if m.results != nil {
		method, _ := m.detection.MethodValue()
		_ = m.results.Write(jsonl.NewRecord(jsonl.KindDetection, m.runID, jsonl.DetectionData{
			SessionID: sessionID,
			Method:    method,
			Readings:  len(sess.Readings),
			Result:    result,
			Reason:    reason,
		}))
	}
}

func (m *monitor) writeMetrics() {
	snap := metricsSnapshot{
		TsUnixNs:     timeutil.NowNano(),
		Stream:       m.client.Metrics(),
		Cadence:      m.tracker.Stats(),
		OpenSessions: m.sessions.Len(),
		Detections:   m.detections,

		DroppedBatches: m.sessions.Dropped(),
	}
	m.logger.Debug("监控指标",
		zap.Float64("batches_per_sec", snap.Stream.BatchesPerSec),
		zap.Float64("sample_gap_p50_ms", snap.Cadence.SampleGapP50Ms),
		zap.Float64("sample_gap_p99_ms", snap.Cadence.SampleGapP99Ms),
		zap.Float64("batch_interval_p50_ms", snap.Cadence.BatchIntervalP50Ms),
		zap.Int("open_sessions", snap.OpenSessions),
		zap.Int("dropped_batches", snap.DroppedBatches),
	)
	if m.metrics != nil {
		_ = m.metrics.Write(jsonl.NewRecord(jsonl.KindMetrics, m.runID, snap))
		_ = m.metrics.Flush()
	}
}
