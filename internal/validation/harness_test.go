package validation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/core/model"
	"transit-direction-validator/internal/stats/accuracy"
)

func pulse(t, peak, hw, slope int64) int64 {
	d := t - peak
	if d < 0 {
		d = -d
	}
	if hw-d <= 0 {
		return 0
	}
	return slope * (hw - d)
}

// writeSessionCSV 写出每毫秒双侧采样的会话（A 侧 side 2，B 侧 side 1）
func writeSessionCSV(t *testing.T, path string, a, b func(int64) int64) {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("timestamp_offset,pcb_id,side,proximity\n")
	for ts := int64(0); ts <= 100; ts++ {
		fmt.Fprintf(&buf, "%d,1,2,%d\n", ts, a(ts))
		fmt.Fprintf(&buf, "%d,1,1,%d\n", ts, b(ts))
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func early(ts int64) int64 { return pulse(ts, 20, 20, 4) }
func late(ts int64) int64  { return pulse(ts, 60, 20, 5) }
func noise(ts int64) int64 { return 2 * (ts % 2) }

// buildCorpus 五个可识别单元（其中一个损坏）与一个无标签文件
func buildCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeSessionCSV(t, filepath.Join(dir, "a_to_b_001.csv"), early, late)
	writeSessionCSV(t, filepath.Join(dir, "b_to_a_001.csv"), late, early)
	writeSessionCSV(t, filepath.Join(dir, "baseline_001.csv"), noise, noise)
	writeSessionCSV(t, filepath.Join(dir, "no_transit", "sess-9.csv"), noise, noise)
	writeSessionCSV(t, filepath.Join(dir, "unlabeled.csv"), noise, noise)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_to_b_broken.csv"),
		[]byte("timestamp_offset,pcb_id,side,proximity\n0,1,3,10\n"), 0o644))
	return dir
}

func TestLabelFromName(t *testing.T) {
	cases := map[string]model.Direction{
		"a_to_b_12.csv":    model.DirectionAToB,
		"B_TO_A-x.json":    model.DirectionBToA,
		"baseline_3.csv":   model.DirectionUnknown,
		"no_transit":       model.DirectionUnknown,
		"no_transit_4.csv": model.DirectionUnknown,
	}
	for name, want := range cases {
		got, ok := LabelFromName(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := LabelFromName("session.csv")
	assert.False(t, ok)
}

func TestLoadCorpus(t *testing.T) {
	corpus, err := LoadCorpus(buildCorpus(t))
	require.NoError(t, err)

	names := make([]string, 0, len(corpus.Units))
	for _, u := range corpus.Units {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{
		"a_to_b_001.csv",
		"a_to_b_broken.csv",
		"b_to_a_001.csv",
		"baseline_001.csv",
		"no_transit/sess-9.csv",
	}, names)
	assert.Equal(t, []string{"unlabeled.csv"}, corpus.Skipped)

	assert.Error(t, corpus.Units[1].Err)
	assert.NoError(t, corpus.Units[0].Err)
	assert.Equal(t, model.DirectionUnknown, corpus.Units[4].Expected)

	counts := corpus.CountByClass()
	assert.Equal(t, 2, counts[model.DirectionAToB])
	assert.Equal(t, 2, counts[model.DirectionUnknown])
}

func TestLoadCorpus_MissingDir(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataDirMissing))
}

func testValidationConfig() config.ValidationConfig {
	return config.ValidationConfig{
		Concurrency:    2,
		TargetAccuracy: 0.9,
		Profiles: []config.ProfileConfig{
			{Name: "Default", SmoothingWindow: 3, MinRise: config.Float64Ptr(10), MaxPeakGapMs: config.Int64Ptr(100)},
			{Name: "Strict", SmoothingWindow: 3, MinRise: config.Float64Ptr(500), MaxPeakGapMs: config.Int64Ptr(100)},
		},
		Methods: []string{"rise_start", "center_of_mass", "hybrid"},
	}
}

func TestRuns_DeclarationOrder(t *testing.T) {
	runs, err := Runs(testValidationConfig())
	require.NoError(t, err)
	require.Len(t, runs, 6)
	assert.Equal(t, "Default/rise_start", runs[0].Name())
	assert.Equal(t, "Default/hybrid", runs[2].Name())
	assert.Equal(t, "Strict/rise_start", runs[3].Name())
	assert.Equal(t, float64(500), runs[3].Detection.MinRise)
	assert.Equal(t, "center_of_mass", runs[4].Detection.Method)

	cfg := testValidationConfig()
	cfg.Methods = []string{"peak"}
	_, err = Runs(cfg)
	assert.Error(t, err)
}

func TestHarness_Execute(t *testing.T) {
	corpus, err := LoadCorpus(buildCorpus(t))
	require.NoError(t, err)
	cfg := testValidationConfig()
	runs, err := Runs(cfg)
	require.NoError(t, err)

	report, err := NewHarness(zap.NewNop(), cfg.Concurrency).Execute(context.Background(), corpus, runs, cfg.TargetAccuracy)
	require.NoError(t, err)
	require.Len(t, report.Runs, 6)
	assert.NotEmpty(t, report.RunID)

	for i, rr := range report.Runs {
		assert.Equal(t, runs[i].Name(), rr.Run.Name(), "报告顺序应与声明顺序一致")
		assert.Equal(t, 5, rr.Stats.Total)
		assert.Equal(t, 1, rr.Stats.Failed)
		assert.NotEmpty(t, rr.Results[1].Err)
		assert.False(t, rr.Results[1].Match)
	}

	for _, rr := range report.Runs[:3] {
		assert.InDelta(t, 0.8, rr.Stats.Accuracy, 1e-9, rr.Run.Name())
		assert.True(t, rr.Results[0].Match)
		assert.Equal(t, model.DirectionBToA, rr.Results[2].Result.Direction)
	}
	for _, rr := range report.Runs[3:] {
		assert.InDelta(t, 0.4, rr.Stats.Accuracy, 1e-9, rr.Run.Name())
	}

	assert.Equal(t, 0, report.Best)
	assert.False(t, report.TargetMet())

	report.TargetAccuracy = 0.8
	assert.True(t, report.TargetMet())
}

func TestHarness_Cancelled(t *testing.T) {
	corpus, err := LoadCorpus(buildCorpus(t))
	require.NoError(t, err)
	runs, err := Runs(testValidationConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewHarness(nil, 1).Execute(ctx, corpus, runs, 0.9)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectBest(t *testing.T) {
	mk := func(acc ...float64) []RunReport {
		out := make([]RunReport, len(acc))
		for i, a := range acc {
			out[i].Stats = accuracy.Stats{Accuracy: a}
		}
		return out
	}
	assert.Equal(t, -1, SelectBest(nil))
	assert.Equal(t, 0, SelectBest(mk(0, 0)))
	assert.Equal(t, 1, SelectBest(mk(0.5, 0.7, 0.7)))
}

func TestRender(t *testing.T) {
	corpus, err := LoadCorpus(buildCorpus(t))
	require.NoError(t, err)
	cfg := testValidationConfig()
	cfg.Profiles = cfg.Profiles[:1]
	runs, err := Runs(cfg)
	require.NoError(t, err)
	report, err := NewHarness(nil, 0).Execute(context.Background(), corpus, runs, cfg.TargetAccuracy)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, report, RenderOptions{Units: true}))
	out := buf.String()

	assert.Contains(t, out, "Default/hybrid")
	assert.Contains(t, out, "smoothing=3, min_rise=10, max_gap=100ms")
	assert.Contains(t, out, "4/5 = 80.0%")
	assert.Contains(t, out, "a_to_b_broken.csv")
	assert.Contains(t, out, "低于目标准确率")
	assert.True(t, strings.Index(out, "Default/rise_start") < strings.Index(out, "Default/center_of_mass"))
}
