// Package jsonl 输出模块测试
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"transit-direction-validator/internal/core/model"
)

func TestDetectionRecord_OutputCompleteness_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("detection 记录 JSON 必含必需字段", prop.ForAll(
		func(sessionID string, conf float64, gap int64, known bool) bool {
			res := model.DetectionResult{Direction: model.DirectionUnknown}
			if known {
				res = model.DetectionResult{
					Direction:  model.DirectionAToB,
					Confidence: conf,
					EventTimeA: model.Int64Ptr(10),
					EventTimeB: model.Int64Ptr(10 + gap),
					GapMs:      model.Int64Ptr(gap),
				}
			}
			rec := NewRecord(KindDetection, "run-1", DetectionData{
				SessionID: sessionID,
				Method:    model.MethodHybrid,
				Result:    res,
				Reason:    "final",
			})

			b, err := json.Marshal(rec)
			if err != nil {
				return false
			}
			var m map[string]any
			if err := json.Unmarshal(b, &m); err != nil {
				return false
			}
			for _, k := range []string{"kind", "run_id", "ts_ms", "data"} {
				if _, ok := m[k]; !ok {
					return false
				}
			}
			data, ok := m["data"].(map[string]any)
			if !ok || data["method"] != "hybrid" {
				return false
			}
			result, ok := data["result"].(map[string]any)
			if !ok {
				return false
			}
			for _, k := range []string{"direction", "confidence", "event_time_a", "event_time_b", "gap_ms", "side_a_max", "side_b_max"} {
				if _, ok := result[k]; !ok {
					return false
				}
			}
			return known || result["gap_ms"] == nil
		},
		gen.AlphaString(),
		gen.Float64Range(0, 1),
		gen.Int64Range(0, 100),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestWriter_WriteAndClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "results.jsonl")

	w, err := NewWriter(path, 4)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := w.Write(NewRecord(KindUnit, "r", map[string]any{"i": i})); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Write(func() {}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("重复 Close: %v", err)
	}

	if w.Written() != 10 || w.Failed() != 1 {
		t.Fatalf("Written=%d Failed=%d, want 10/1", w.Written(), w.Failed())
	}
	if err := w.Write(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("关闭后写入应返回 ErrClosed, got %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lines := 0
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("第 %d 行无法解析: %v", lines, err)
		}
		if rec.Kind != KindUnit {
			t.Fatalf("Kind=%s, want unit", rec.Kind)
		}
		lines++
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if lines != 10 {
		t.Fatalf("lines=%d, want 10", lines)
	}
}
