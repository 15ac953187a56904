package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/core/detect"
	"transit-direction-validator/internal/core/model"
	"transit-direction-validator/internal/stats/accuracy"
)

// Run 一个参数档位与检测策略的组合
type Run struct {
	// Profile 档位名称
	Profile string `json:"profile"`
	// Method 检测策略
	Method model.Method `json:"method"`
	// Detection 完整检测参数
	Detection config.DetectionConfig `json:"detection"`
}

// Name 运行名称，如 Default/hybrid
func (r Run) Name() string {
	return r.Profile + "/" + r.Method.String()
}

// Runs 按声明顺序展开 档位 × 策略
// 档位为外层循环，策略为内层循环；档位缺省字段已由 config.SetDefaults 继承。
func Runs(cfg config.ValidationConfig) ([]Run, error) {
	methods := make([]model.Method, 0, len(cfg.Methods))
	for _, name := range cfg.Methods {
		m, err := model.ParseMethod(name)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}

	runs := make([]Run, 0, len(cfg.Profiles)*len(methods))
	for _, p := range cfg.Profiles {
		for _, m := range methods {
			runs = append(runs, Run{
				Profile:   p.Name,
				Method:    m,
				Detection: p.Detection(m.String()),
			})
		}
	}
	return runs, nil
}

// UnitResult 单元在一次运行中的结果
type UnitResult struct {
	// Unit 单元标识
	Unit string `json:"unit"`
	// Expected 标签方向
	Expected model.Direction `json:"expected"`
	// Result 检测结果（失败单元为零值 unknown）
	Result model.DetectionResult `json:"result"`
	// Match 是否与标签一致
	Match bool `json:"match"`
	// Err 失败原因
	Err string `json:"error,omitempty"`
}

// RunReport 一次运行的报告
type RunReport struct {
	Run     Run            `json:"run"`
	Results []UnitResult   `json:"results"`
	Stats   accuracy.Stats `json:"stats"`
	// Elapsed 运行耗时
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Report 整次验证的报告
type Report struct {
	// RunID 本次验证的唯一标识
	RunID string `json:"run_id"`
	// StartedAt 开始时间
	StartedAt time.Time `json:"started_at"`
	// DataDir 语料目录
	DataDir string `json:"data_dir"`
	// Runs 各运行报告，顺序与声明顺序一致
	Runs []RunReport `json:"runs"`
	// Best 最佳运行下标，没有运行时为 -1
	Best int `json:"best"`
	// TargetAccuracy 目标准确率
	TargetAccuracy float64 `json:"target_accuracy"`
}

// BestRun 返回最佳运行，没有运行时返回 nil
func (r *Report) BestRun() *RunReport {
	if r.Best < 0 || r.Best >= len(r.Runs) {
		return nil
	}
	return &r.Runs[r.Best]
}

// TargetMet 最佳运行是否达到目标准确率
func (r *Report) TargetMet() bool {
	best := r.BestRun()
	return best != nil && accuracy.MeetsTarget(best.Stats, r.TargetAccuracy)
}

// SelectBest 选出准确率最高的运行（并列时取声明顺序中的第一个）
func SelectBest(runs []RunReport) int {
	best := -1
	bestAcc := -1.0
	for i, r := range runs {
		if r.Stats.Accuracy > bestAcc {
			best = i
			bestAcc = r.Stats.Accuracy
		}
	}
	return best
}

// Harness 验证执行器
type Harness struct {
	logger      *zap.Logger
	concurrency int
}

// NewHarness 创建验证执行器
// 参数 concurrency: 并行运行数，<=0 表示不限制
func NewHarness(logger *zap.Logger, concurrency int) *Harness {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harness{logger: logger, concurrency: concurrency}
}

// Execute 在语料上执行全部运行
// 运行之间并行；每个运行只写自己的报告槽位，报告顺序与 runs 一致。
// 单元失败只记录在结果中，不中断运行；仅 ctx 取消时返回错误。
func (h *Harness) Execute(ctx context.Context, corpus *Corpus, runs []Run, target float64) (*Report, error) {
	report := &Report{
		RunID:          uuid.NewString(),
		StartedAt:      time.Now(),
		DataDir:        corpus.Dir,
		Runs:           make([]RunReport, len(runs)),
		Best:           -1,
		TargetAccuracy: target,
	}

	g, gctx := errgroup.WithContext(ctx)
	if h.concurrency > 0 {
		g.SetLimit(h.concurrency)
	}

	for i, run := range runs {
		i, run := i, run
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rr, err := h.execute(gctx, corpus, run)
			if err != nil {
				return err
			}
			report.Runs[i] = rr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Best = SelectBest(report.Runs)
	return report, nil
}

func (h *Harness) execute(ctx context.Context, corpus *Corpus, run Run) (RunReport, error) {
	start := time.Now()
	fn, err := detect.For(run.Method)
	if err != nil {
		return RunReport{}, fmt.Errorf("运行 %s: %w", run.Name(), err)
	}

	calc := accuracy.NewCalculator()
	results := make([]UnitResult, 0, len(corpus.Units))

	for _, u := range corpus.Units {
		if err := ctx.Err(); err != nil {
			return RunReport{}, err
		}

		ur := UnitResult{
			Unit:     u.Name,
			Expected: u.Expected,
			Result:   model.DetectionResult{Direction: model.DirectionUnknown},
		}
		if u.Err != nil {
			ur.Err = u.Err.Error()
			h.logger.Debug("单元加载失败，计为错误",
				zap.String("run", run.Name()),
				zap.String("unit", u.Name),
				zap.Error(u.Err),
			)
			calc.Add(accuracy.Outcome{Expected: u.Expected, Predicted: model.DirectionUnknown, Failed: true})
			results = append(results, ur)
			continue
		}

		ur.Result = fn(u.Session.Readings, run.Detection)
		ur.Match = ur.Result.Direction == u.Expected
		calc.Add(accuracy.Outcome{
			Expected:   u.Expected,
			Predicted:  ur.Result.Direction,
			Confidence: ur.Result.Confidence,
		})
		results = append(results, ur)
	}

	rr := RunReport{
		Run:     run,
		Results: results,
		Stats:   calc.Stats(),
		Elapsed: time.Since(start),
	}
	h.logger.Info("运行完成",
		zap.String("run", run.Name()),
		zap.String("params", run.Detection.String()),
		zap.Int("units", rr.Stats.Total),
		zap.Int("correct", rr.Stats.Correct),
		zap.Int("failed", rr.Stats.Failed),
		zap.Float64("accuracy", rr.Stats.Accuracy),
		zap.Duration("elapsed", rr.Elapsed),
	)
	return rr, nil
}
