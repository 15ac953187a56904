package analysis

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transit-direction-validator/internal/core/model"
)

func TestEstimateIntegrationTime(t *testing.T) {
	cases := map[float64]string{
		0:    "1T/1.5T",
		3:    "1T/1.5T",
		3.1:  "2T",
		6:    "2T",
		9:    "4T",
		12:   "4T",
		18.5: "8T",
	}
	for r, want := range cases {
		assert.Equal(t, want, EstimateIntegrationTime(r), "redundancy=%v", r)
	}
}

func TestAnalyze(t *testing.T) {
	// 时间戳 0,2,4,10；P1S1 每轮都变，P1S2 只变一次
	var readings []model.SensorReading
	s1 := []int64{10, 20, 30, 40}
	s2 := []int64{5, 5, 5, 50}
	for i, ts := range []int64{0, 2, 4, 10} {
		readings = append(readings,
			model.SensorReading{TimestampMs: ts, ModuleID: 1, Side: model.SensorSide2, Proximity: s2[i]},
			model.SensorReading{TimestampMs: ts, ModuleID: 1, Side: model.SensorSide1, Proximity: s1[i]},
		)
	}

	s := Analyze("x.csv", readings)
	assert.Equal(t, int64(10), s.SpanMs)
	assert.Equal(t, 4, s.Cycles)
	assert.InDelta(t, 400, s.ReadRateHz, 1e-9)
	assert.InDelta(t, 10.0/3, s.GapMeanMs, 1e-9)
	assert.Equal(t, 2.0, s.GapMinMs)
	assert.Equal(t, 6.0, s.GapMaxMs)

	require.Len(t, s.Sensors, 2)
	p1s1, p1s2 := s.Sensors[0], s.Sensors[1]
	assert.Equal(t, "P1S1", p1s1.Name)
	assert.Equal(t, 3, p1s1.Changes)
	assert.InDelta(t, 4.0/3, p1s1.Redundancy, 1e-9)
	assert.InDelta(t, 300, p1s1.EffectiveHz, 1e-9)
	assert.Equal(t, 20.0, p1s1.Baseline)
	assert.Equal(t, 40.0, p1s1.Peak)
	assert.Equal(t, 2.0, p1s1.SNR)

	assert.Equal(t, "P1S2", p1s2.Name)
	assert.Equal(t, 1, p1s2.Changes)
	assert.Equal(t, 4.0, p1s2.Redundancy)
	assert.Equal(t, 5.0, p1s2.Baseline)
	assert.Equal(t, 45.0, p1s2.Range)

	assert.InDelta(t, (4.0/3+4)/2, s.AvgRedundancy, 1e-9)
	assert.Equal(t, "1T/1.5T", s.IntegrationTime)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, s))
	assert.Contains(t, buf.String(), "P1S2")
	assert.Contains(t, buf.String(), "估计积分时间: 1T/1.5T")

	buf.Reset()
	require.NoError(t, RenderComparison(&buf, []SessionStats{s}))
	assert.Contains(t, buf.String(), "x.csv")
}

func TestAnalyze_Empty(t *testing.T) {
	s := Analyze("empty", nil)
	assert.Zero(t, s.Cycles)
	assert.Empty(t, s.Sensors)
	assert.Equal(t, "1T/1.5T", s.IntegrationTime)
}

func TestAnalyze_ZeroBaseline(t *testing.T) {
	s := Analyze("z", []model.SensorReading{
		{TimestampMs: 0, ModuleID: 2, Side: model.SensorSide1},
		{TimestampMs: 0, ModuleID: 2, Side: model.SensorSide1},
		{TimestampMs: 0, ModuleID: 2, Side: model.SensorSide1, Proximity: 9},
	})
	require.Len(t, s.Sensors, 1)
	assert.Zero(t, s.Sensors[0].SNR)
	assert.Zero(t, s.ReadRateHz)
	assert.Equal(t, 9.0, s.Sensors[0].Range)
}
