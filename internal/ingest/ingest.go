// Package ingest 读取并规范化原始接近度读数。
// 支持两种来源：CSV 会话导出（timestamp_offset,pcb_id,side,proximity）
// 与会话下载工具生成的 JSON（{"session":{...},"readings":[...]}）。
// 所有来源都经过 Normalize 校验后按时间戳稳定排序。
package ingest

import (
	"errors"
	"fmt"
	"sort"

	"transit-direction-validator/internal/core/model"
)

// 错误定义
var (
	// ErrUnsupportedFormat 不支持的文件格式
	ErrUnsupportedFormat = errors.New("不支持的文件格式")
	// ErrMissingColumn CSV 缺少必需列
	ErrMissingColumn = errors.New("缺少必需列")
)

// RawReading 未校验的读数，字段缺失时为 nil
type RawReading struct {
	TimestampMs *int64 `json:"timestamp_offset"`
	ModuleID    *int   `json:"pcb_id"`
	Side        *int   `json:"side"`
	Proximity   *int64 `json:"proximity"`
}

// RowError 单行校验错误
type RowError struct {
	// Row 行号（从 0 开始，不含表头）
	Row int
	// Field 出错字段
	Field string
	// Reason 错误原因
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("第 %d 行字段 %s: %s", e.Row, e.Field, e.Reason)
}

// Session 一个会话的读数
type Session struct {
	// ID 会话 ID（JSON 中的 session_id，缺省为文件名）
	ID string
	// Readings 按时间戳升序的读数
	Readings []model.SensorReading
}

// Normalize 校验原始读数并转换为 SensorReading
// 参数 raw: 原始读数
// 返回: 按时间戳稳定排序的读数；遇到第一处无效字段即返回 *RowError
func Normalize(raw []RawReading) ([]model.SensorReading, error) {
	out := make([]model.SensorReading, 0, len(raw))
	for i, r := range raw {
		reading, err := normalizeOne(i, r)
		if err != nil {
			return nil, err
		}
		out = append(out, reading)
	}
	SortByTimestamp(out)
	return out, nil
}

func normalizeOne(row int, r RawReading) (model.SensorReading, error) {
	switch {
	case r.TimestampMs == nil:
		return model.SensorReading{}, &RowError{Row: row, Field: "timestamp_offset", Reason: "缺失"}
	case r.ModuleID == nil:
		return model.SensorReading{}, &RowError{Row: row, Field: "pcb_id", Reason: "缺失"}
	case r.Side == nil:
		return model.SensorReading{}, &RowError{Row: row, Field: "side", Reason: "缺失"}
	case r.Proximity == nil:
		return model.SensorReading{}, &RowError{Row: row, Field: "proximity", Reason: "缺失"}
	}

	if *r.TimestampMs < 0 {
		return model.SensorReading{}, &RowError{Row: row, Field: "timestamp_offset", Reason: fmt.Sprintf("不能为负数: %d", *r.TimestampMs)}
	}
	if *r.Proximity < 0 {
		return model.SensorReading{}, &RowError{Row: row, Field: "proximity", Reason: fmt.Sprintf("不能为负数: %d", *r.Proximity)}
	}
	side := model.SensorSide(*r.Side)
	if side != model.SensorSide1 && side != model.SensorSide2 {
		return model.SensorReading{}, &RowError{Row: row, Field: "side", Reason: fmt.Sprintf("必须为 1 或 2: %d", *r.Side)}
	}

	return model.SensorReading{
		TimestampMs: *r.TimestampMs,
		ModuleID:    *r.ModuleID,
		Side:        side,
		Proximity:   *r.Proximity,
	}, nil
}

// SortByTimestamp 按时间戳稳定排序（同一时间戳保持输入顺序）
func SortByTimestamp(readings []model.SensorReading) {
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].TimestampMs < readings[j].TimestampMs
	})
}
