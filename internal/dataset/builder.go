package dataset

import (
	"gonum.org/v1/gonum/mat"

	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/core/model"
)

// Labeled 一个带标签会话
type Labeled struct {
	// ID 会话 ID
	ID string
	// Label 标签方向（unknown 表示无穿越）
	Label model.Direction
	// Readings 会话读数
	Readings []model.SensorReading
}

// Sample 一个训练样本
type Sample struct {
	// SessionID 来源会话
	SessionID string
	// Label 标签方向
	Label model.Direction
	// Augmented 是否为通道交换生成的镜像样本
	Augmented bool
	// Window window_ms × 6 归一化矩阵
	Window *mat.Dense
	// Clipped 归一化时被裁剪的单元格数
	Clipped int
}

// Rows 以行切片形式返回窗口，便于 JSON 序列化
func (s Sample) Rows() [][]float64 {
	rows, _ := s.Window.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = append([]float64(nil), s.Window.RawRowView(i)...)
	}
	return out
}

// Builder 训练窗口构建器
type Builder struct {
	cfg config.ExportConfig
}

// NewBuilder 创建构建器
func NewBuilder(cfg config.ExportConfig) *Builder {
	return &Builder{cfg: cfg}
}

// anchorPosition 无穿越会话总是居中，其余按对齐方式
func (b *Builder) anchorPosition(label model.Direction) float64 {
	if label == model.DirectionUnknown || b.cfg.Alignment == "center" {
		return CenterAnchor
	}
	return TriggerAnchor
}

// Sample 将一个会话转换为训练样本
// 无穿越会话以会话中点为锚点，其余以信号总和峰值为锚点。
func (b *Builder) Sample(l Labeled) Sample {
	m := ReadingsMatrix(l.Readings)

	var anchor int
	if l.Label == model.DirectionUnknown {
		rows, _ := m.Dims()
		anchor = rows / 2
	} else {
		anchor = EventAnchor(m)
	}

	window := ExtractWindow(m, b.cfg.WindowMs, anchor, b.anchorPosition(l.Label))
	clipped := Normalize(window, b.cfg.NormMax)
	return Sample{SessionID: l.ID, Label: l.Label, Window: window, Clipped: clipped}
}

// Build 构建全部样本
// 开启增强时，每个样本追加一个通道交换、标签翻转的镜像（无穿越标签不变），
// 镜像样本排在所有原始样本之后。
func (b *Builder) Build(sessions []Labeled) []Sample {
	out := make([]Sample, 0, len(sessions)*2)
	for _, l := range sessions {
		out = append(out, b.Sample(l))
	}
	if !b.cfg.Augment {
		return out
	}

	n := len(out)
	for i := 0; i < n; i++ {
		s := out[i]
		out = append(out, Sample{
			SessionID: s.SessionID,
			Label:     s.Label.Flip(),
			Augmented: true,
			Window:    SwapChannels(s.Window),
			Clipped:   s.Clipped,
		})
	}
	return out
}
