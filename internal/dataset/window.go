// Package dataset 将会话读数转换为固定长度的训练窗口。
// 每个窗口是 window_ms × 6 的矩阵：每行 1ms，每列一个传感器位置
// （position = (pcb_id-1)*2 + (side-1)），值为前向填充的接近度，经 norm_max 归一化到 [0,1]。
// 归一化常数必须与固件推理保持一致。
package dataset

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"transit-direction-validator/internal/core/model"
)

const (
	// TriggerAnchor 触发对齐：固件在波形起点触发并延迟采集，峰值落在窗口约 2/3 处
	TriggerAnchor = 0.67
	// CenterAnchor 居中对齐
	CenterAnchor = 0.5
)

// swapOrder A/B 通道交换后的列顺序（每块板的两侧互换）
var swapOrder = []int{1, 0, 3, 2, 5, 4}

// ReadingsMatrix 将读数转换为 T×6 矩阵
// 行 t 对应 min_ts+t；同一单元格多次写入时保留最后一次；
// 每列把非零值向后填充到下一个非零值之前。位置超出 0-5 的读数忽略。
// 没有读数或时长为 0 时返回 1×6 零矩阵。
func ReadingsMatrix(readings []model.SensorReading) *mat.Dense {
	if len(readings) == 0 {
		return mat.NewDense(1, model.NumPositions, nil)
	}

	minTs, maxTs := readings[0].TimestampMs, readings[0].TimestampMs
	for _, r := range readings[1:] {
		if r.TimestampMs < minTs {
			minTs = r.TimestampMs
		}
		if r.TimestampMs > maxTs {
			maxTs = r.TimestampMs
		}
	}
	duration := int(maxTs - minTs)
	if duration <= 0 {
		return mat.NewDense(1, model.NumPositions, nil)
	}

	m := mat.NewDense(duration+1, model.NumPositions, nil)
	for _, r := range readings {
		pos := r.Position()
		if pos < 0 || pos >= model.NumPositions {
			continue
		}
		m.Set(int(r.TimestampMs-minTs), pos, float64(r.Proximity))
	}

	rows, _ := m.Dims()
	for col := 0; col < model.NumPositions; col++ {
		last := 0.0
		for row := 0; row < rows; row++ {
			if v := m.At(row, col); v != 0 {
				last = v
			} else {
				m.Set(row, col, last)
			}
		}
	}
	return m
}

// EventAnchor 事件锚点：所有位置之和最大的行（并列取最早）
func EventAnchor(m *mat.Dense) int {
	rows, _ := m.Dims()
	totals := make([]float64, rows)
	for i := range totals {
		totals[i] = floats.Sum(m.RawRowView(i))
	}
	return floats.MaxIdx(totals)
}

// ExtractWindow 截取 windowMs 行的窗口，使 anchor 位于窗口 anchorPosition 处
// 超出矩阵范围的部分补零。
func ExtractWindow(m *mat.Dense, windowMs, anchor int, anchorPosition float64) *mat.Dense {
	rows, cols := m.Dims()
	window := mat.NewDense(windowMs, cols, nil)

	start := anchor - int(float64(windowMs)*anchorPosition)
	end := start + windowMs

	srcStart := max(0, start)
	srcEnd := min(rows, end)
	if srcEnd <= srcStart {
		return window
	}
	dstStart := srcStart - start
	n := srcEnd - srcStart

	dst := window.Slice(dstStart, dstStart+n, 0, cols).(*mat.Dense)
	dst.Copy(m.Slice(srcStart, srcEnd, 0, cols))
	return window
}

// Normalize 原地除以 normMax 并裁剪到 [0,1]
// normMax <= 0 时不做处理。
// 返回: 被裁剪（原值超过 normMax）的单元格数
func Normalize(m *mat.Dense, normMax float64) int {
	if normMax <= 0 {
		return 0
	}
	m.Scale(1/normMax, m)

	clipped := 0
	m.Apply(func(_, _ int, v float64) float64 {
		switch {
		case v > 1:
			clipped++
			return 1
		case v < 0:
			return 0
		default:
			return v
		}
	}, m)
	return clipped
}

// SwapChannels 返回 A/B 通道互换后的新矩阵
func SwapChannels(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for dst, src := range swapOrder {
		if src >= cols || dst >= cols {
			continue
		}
		out.SetCol(dst, mat.Col(nil, src, m))
	}
	return out
}
