package dataset

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/core/model"
)

func reading(ts int64, module int, side model.SensorSide, prox int64) model.SensorReading {
	return model.SensorReading{TimestampMs: ts, ModuleID: module, Side: side, Proximity: prox}
}

func TestReadingsMatrix_ForwardFill(t *testing.T) {
	m := ReadingsMatrix([]model.SensorReading{
		reading(100, 1, model.SensorSide1, 5),
		reading(102, 1, model.SensorSide2, 7),
		reading(103, 3, model.SensorSide2, 9),
		reading(104, 1, model.SensorSide1, 6),
		reading(104, 4, model.SensorSide1, 99), // 位置 6 超出范围
	})
	rows, cols := m.Dims()
	require.Equal(t, 5, rows)
	require.Equal(t, model.NumPositions, cols)

	assert.Equal(t, []float64{5, 5, 5, 5, 6}, mat.Col(nil, 0, m))
	assert.Equal(t, []float64{0, 0, 7, 7, 7}, mat.Col(nil, 1, m))
	assert.Equal(t, []float64{0, 0, 0, 9, 9}, mat.Col(nil, 5, m))
}

func TestReadingsMatrix_Degenerate(t *testing.T) {
	for _, readings := range [][]model.SensorReading{nil, {reading(5, 1, model.SensorSide1, 10)}} {
		m := ReadingsMatrix(readings)
		rows, cols := m.Dims()
		assert.Equal(t, 1, rows)
		assert.Equal(t, model.NumPositions, cols)
		assert.Equal(t, 0.0, mat.Sum(m))
	}
}

func TestEventAnchor_FirstMax(t *testing.T) {
	m := mat.NewDense(4, 2, []float64{
		1, 0,
		2, 3,
		5, 0,
		4, 1,
	})
	assert.Equal(t, 1, EventAnchor(m))
}

func TestExtractWindow_Padding(t *testing.T) {
	m := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})

	// anchor=1 位于窗口中点 2 → 源区间 [-1, 3)
	w := ExtractWindow(m, 4, 1, 0.5)
	assert.Equal(t, []float64{0, 1, 2, 3}, mat.Col(nil, 0, w))

	// anchor=4，触发对齐 int(4*0.67)=2 → 源区间 [2, 6)
	w = ExtractWindow(m, 4, 4, TriggerAnchor)
	assert.Equal(t, []float64{3, 4, 5, 0}, mat.Col(nil, 0, w))

	// 完全不重叠
	w = ExtractWindow(m, 3, 100, 0.5)
	assert.Equal(t, 0.0, mat.Sum(w))
}

func TestNormalize_Clips(t *testing.T) {
	m := mat.NewDense(1, 3, []float64{0, 245, 980})
	clipped := Normalize(m, 490)
	assert.Equal(t, 1, clipped)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1}, m.RawRowView(0), 1e-12)

	m = mat.NewDense(1, 1, []float64{7})
	assert.Equal(t, 0, Normalize(m, 0))
	assert.Equal(t, 7.0, m.At(0, 0))
}

func TestSwapChannels_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("交换两次恢复原矩阵", prop.ForAll(
		func(vals []float64) bool {
			m := mat.NewDense(10, model.NumPositions, vals)
			return mat.Equal(SwapChannels(SwapChannels(m)), m)
		},
		gen.SliceOfN(60, gen.Float64Range(0, 1)),
	))

	properties.Property("交换后 A 侧列等于原 B 侧列", prop.ForAll(
		func(vals []float64) bool {
			m := mat.NewDense(10, model.NumPositions, vals)
			s := SwapChannels(m)
			for _, pair := range [][2]int{{0, 1}, {2, 3}, {4, 5}} {
				if !floats.Equal(mat.Col(nil, pair[0], s), mat.Col(nil, pair[1], m)) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(60, gen.Float64Range(0, 1)),
	))

	properties.TestingRun(t)
}

func TestBuilder_Build(t *testing.T) {
	var transit []model.SensorReading
	for ts := int64(0); ts < 200; ts++ {
		v := int64(0)
		if ts >= 90 && ts <= 110 {
			v = 490
		}
		if ts == 100 {
			v = 980
		}
		transit = append(transit, reading(ts, 1, model.SensorSide2, v+1))
	}

	b := NewBuilder(config.ExportConfig{WindowMs: 30, Alignment: "trigger", NormMax: 490, Augment: true})
	samples := b.Build([]Labeled{
		{ID: "s1", Label: model.DirectionAToB, Readings: transit},
		{ID: "s2", Label: model.DirectionUnknown, Readings: transit},
	})
	require.Len(t, samples, 4)

	// 锚点为 t=100，触发对齐时落在第 int(30*0.67)=20 行
	s := samples[0]
	rows, _ := s.Window.Dims()
	assert.Equal(t, 30, rows)
	assert.Equal(t, 1.0, s.Window.At(20, 1))
	assert.Equal(t, 1/490.0, s.Window.At(0, 1))
	assert.Equal(t, 0.0, s.Window.At(20, 0))
	assert.Greater(t, s.Clipped, 0)

	// 无穿越会话以中点为锚，居中对齐
	assert.Equal(t, model.DirectionUnknown, samples[1].Label)
	assert.Len(t, samples[1].Rows(), 30)

	mirror := samples[2]
	assert.True(t, mirror.Augmented)
	assert.Equal(t, model.DirectionBToA, mirror.Label)
	assert.Equal(t, 1.0, mirror.Window.At(20, 0))
	assert.Equal(t, model.DirectionUnknown, samples[3].Label)
}
