// Package model 定义方向检测中使用的核心数据结构。
// 包含传感器读数、逻辑侧、检测方向与检测结果等类型。
package model

import "fmt"

// SensorSide 传感器板上的物理侧（S1/S2）
type SensorSide int

const (
	// SensorSide1 板上 S1 传感器，朝向 B 侧
	SensorSide1 SensorSide = 1
	// SensorSide2 板上 S2 传感器，朝向 A 侧
	SensorSide2 SensorSide = 2
)

// Side 闸门的逻辑侧
type Side string

const (
	// SideA 逻辑 A 侧（汇总所有 S2 传感器）
	SideA Side = "a"
	// SideB 逻辑 B 侧（汇总所有 S1 传感器）
	SideB Side = "b"
)

// NumPositions 传感器阵列位置数（3 块板 × 2 侧）
const NumPositions = 6

// SensorReading 单条原始传感器读数
// 创建后不可变，生命周期为一次分析调用。
type SensorReading struct {
	// TimestampMs 相对会话开始的时间（毫秒）
	// 会话内单调不减，但不保证连续
	TimestampMs int64 `json:"timestamp_offset"`
	// ModuleID 传感器板编号（pcb_id）
	ModuleID int `json:"pcb_id"`
	// Side 板上物理侧: 1 或 2
	Side SensorSide `json:"side"`
	// Proximity 原始接近度读数（非负）
	Proximity int64 `json:"proximity"`
}

// LogicalSide 返回读数所属的逻辑侧
// 映射固定：side==2 → A，side==1 → B
func (r SensorReading) LogicalSide() Side {
	if r.Side == SensorSide2 {
		return SideA
	}
	return SideB
}

// Position 返回读数在 6 通道阵列中的位置
// 公式: (pcb_id-1)*2 + (side-1)；偶数位为 B 侧，奇数位为 A 侧
// 返回 -1 表示超出阵列范围
func (r SensorReading) Position() int {
	pos := (r.ModuleID-1)*2 + int(r.Side) - 1
	if pos < 0 || pos >= NumPositions {
		return -1
	}
	return pos
}

// SensorName 传感器名称，如 P1S2
func (r SensorReading) SensorName() string {
	return fmt.Sprintf("P%dS%d", r.ModuleID, r.Side)
}

// Swapped 返回交换物理侧（1↔2）后的读数副本
func (r SensorReading) Swapped() SensorReading {
	out := r
	if r.Side == SensorSide1 {
		out.Side = SensorSide2
	} else if r.Side == SensorSide2 {
		out.Side = SensorSide1
	}
	return out
}
