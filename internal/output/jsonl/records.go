package jsonl

import (
	"transit-direction-validator/internal/core/model"
	"transit-direction-validator/internal/util/timeutil"
)

// Kind 记录类型
type Kind string

const (
	// KindUnit 验证运行中的单元结果
	KindUnit Kind = "unit"
	// KindRun 验证运行汇总
	KindRun Kind = "run"
	// KindDetection 实时会话检测结果
	KindDetection Kind = "detection"
	// KindWindow 训练窗口
	KindWindow Kind = "window"
	// KindMetrics 实时监控指标快照
	KindMetrics Kind = "metrics"
)

// Record JSONL 记录信封
type Record struct {
	// Kind 记录类型
	Kind Kind `json:"kind"`
	// RunID 产生该记录的验证/监控运行 ID
	RunID string `json:"run_id"`
	// TsMs 写入时间（Unix 毫秒）
	TsMs int64 `json:"ts_ms"`
	// Data 记录内容
	Data any `json:"data"`
}

// NewRecord 构造记录信封
func NewRecord(kind Kind, runID string, data any) Record {
	return Record{Kind: kind, RunID: runID, TsMs: timeutil.NowMs(), Data: data}
}

// DetectionData 实时会话检测记录内容
type DetectionData struct {
	// SessionID 会话 ID
	SessionID string `json:"session_id"`
	// Method 检测策略
	Method model.Method `json:"method"`
	// Readings 读数条数
	Readings int `json:"readings"`
	// Result 检测结果
	Result model.DetectionResult `json:"result"`
	// Reason 会话结束原因: final 或 idle
	Reason string `json:"reason"`
}

// WindowData 训练窗口记录内容
type WindowData struct {
	// SessionID 来源会话
	SessionID string `json:"session_id"`
	// Label 标签方向
	Label model.Direction `json:"label"`
	// Augmented 是否为通道交换镜像
	Augmented bool `json:"augmented"`
	// Clipped 归一化时被裁剪的单元格数
	Clipped int `json:"clipped"`
	// Window window_ms 行 × 6 列，已归一化到 [0,1]
	Window [][]float64 `json:"window"`
}
