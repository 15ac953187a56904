package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"transit-direction-validator/internal/ingest"
	"transit-direction-validator/internal/util/timeutil"
)

// ErrMissingSessionID 批次缺少 session_id
var ErrMissingSessionID = errors.New("批次缺少 session_id")

// IsPong 是否为文本 pong 响应
func IsPong(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("pong"))
}

// IsControl 是否为订阅确认等控制消息（带 op 或 event 字段）
func IsControl(data []byte) bool {
	var probe struct {
		Op    string `json:"op"`
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Op != "" || probe.Event != ""
}

// ParseBatch 解析批次消息
// 读数经 ingest.Normalize 校验；任一读数无效则整批拒绝。
// 参数 data: 原始消息字节
func ParseBatch(data []byte) (*Batch, error) {
	arrivedAt := timeutil.NowNano()

	var msg WireBatch
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析批次失败: %w", err)
	}
	if msg.SessionID == "" {
		return nil, ErrMissingSessionID
	}

	raw := make([]ingest.RawReading, len(msg.Readings))
	for i, r := range msg.Readings {
		raw[i] = ingest.RawReading{TimestampMs: r.Ts, ModuleID: r.Pcb, Side: r.Side, Proximity: r.Prox}
	}
	readings, err := ingest.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("会话 %s 批次 %d: %w", msg.SessionID, msg.BatchOffset, err)
	}

	return &Batch{
		SessionID: msg.SessionID,
		DeviceID:  msg.DeviceID,
		Offset:    msg.BatchOffset,
		Final:     msg.Final,
		Readings:  readings,
		ArrivedNs: arrivedAt,
	}, nil
}
