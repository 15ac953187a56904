package stream

import "transit-direction-validator/internal/core/model"

// SubscribeRequest 订阅请求
type SubscribeRequest struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
}

// WireReading 批次中的单条读数（固件短字段名）
type WireReading struct {
	Ts   *int64 `json:"ts"`
	Pos  *int   `json:"pos,omitempty"`
	Pcb  *int   `json:"pcb"`
	Side *int   `json:"side"`
	Prox *int64 `json:"prox"`
	Amb  *int64 `json:"amb,omitempty"`
}

// WireBatch 设备上传的一个批次
type WireBatch struct {
	SessionID   string        `json:"session_id"`
	DeviceID    string        `json:"device_id,omitempty"`
	BatchOffset int           `json:"batch_offset"`
	BatchSize   int           `json:"batch_size,omitempty"`
	DurationMs  int64         `json:"duration_ms,omitempty"`
	Final       bool          `json:"final,omitempty"`
	Readings    []WireReading `json:"readings"`
}

// Batch 解析后的批次
type Batch struct {
	// SessionID 会话 ID
	SessionID string
	// DeviceID 设备 ID
	DeviceID string
	// Offset 批次首条读数在会话中的序号
	Offset int
	// Final 是否为会话最后一批
	Final bool
	// Readings 已校验并按时间排序的读数
	Readings []model.SensorReading
	// ArrivedNs 本地接收时间（纳秒）
	ArrivedNs int64
}

// ConnectionMetrics 连接指标
type ConnectionMetrics struct {
	// BatchesPerSec 每秒批次数
	BatchesPerSec float64
	// LastMessageAgeMs 最后一条消息距今（毫秒）
	LastMessageAgeMs int64
	// WsRttMs 最近一次 ping/pong 往返（毫秒）
	WsRttMs int64
	// ReconnectCount 重连次数
	ReconnectCount int
	// ParseErrorCount 解析错误次数
	ParseErrorCount int
}
