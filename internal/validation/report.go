package validation

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"transit-direction-validator/internal/core/model"
)

const ruleWidth = 70

// RenderOptions 文本报告选项
type RenderOptions struct {
	// Units 是否输出逐单元明细
	Units bool
}

// Render 输出文本报告
// 运行顺序与声明顺序一致，与并行完成顺序无关。
func Render(w io.Writer, r *Report, opts RenderOptions) error {
	rw := &reportWriter{w: w}

	rw.rule("=")
	rw.printf("穿越方向检测验证  run_id=%s\n", r.RunID)
	rw.printf("语料目录: %s\n", r.DataDir)
	rw.rule("=")

	for _, run := range r.Runs {
		rw.printf("\n")
		rw.rule("=")
		rw.printf("运行: %s\n", run.Run.Name())
		rw.printf("  %s\n", run.Run.Detection.String())
		rw.rule("-")

		if opts.Units {
			rw.units(run)
		}

		s := run.Stats
		rw.printf("\n  准确率: %d/%d = %.1f%%", s.Correct, s.Total, 100*s.Accuracy)
		if s.Failed > 0 {
			rw.printf("  (失败 %d)", s.Failed)
		}
		rw.printf("\n  平均置信度: %.2f  正确平均置信度: %.2f\n", s.MeanConfidence, s.MeanCorrectConfidence)
		rw.printf("  分类别:\n")
		for _, cs := range s.PerClass {
			if cs.Total == 0 {
				continue
			}
			rw.printf("    %-8s %d/%d (%.1f%%)\n", cs.Class, cs.Correct, cs.Total, 100*cs.Accuracy)
		}
		rw.confusion(run)
	}

	rw.printf("\n")
	rw.rule("=")
	rw.summary(r)
	rw.rule("=")

	best := r.BestRun()
	switch {
	case best == nil:
		rw.printf("没有可比较的运行\n")
	case r.TargetMet():
		rw.printf("已达到目标准确率 (%.0f%%): %s %.1f%%\n", 100*r.TargetAccuracy, best.Run.Name(), 100*best.Stats.Accuracy)
	default:
		rw.printf("低于目标准确率 (%.0f%%)，最佳: %s %.1f%%\n", 100*r.TargetAccuracy, best.Run.Name(), 100*best.Stats.Accuracy)
	}
	return rw.err
}

// reportWriter 记录第一个写入错误，后续写入忽略
type reportWriter struct {
	w   io.Writer
	err error
}

func (rw *reportWriter) printf(format string, args ...any) {
	if rw.err != nil {
		return
	}
	_, rw.err = fmt.Fprintf(rw.w, format, args...)
}

func (rw *reportWriter) rule(ch string) {
	rw.printf("%s\n", strings.Repeat(ch, ruleWidth))
}

func (rw *reportWriter) units(run RunReport) {
	if rw.err != nil {
		return
	}
	tw := tabwriter.NewWriter(rw.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  \t单元\t标签\t检测\t置信度\tA 时间\tB 时间\t间隔\tA 峰值\tB 峰值")
	for _, u := range run.Results {
		status := "✓"
		if !u.Match {
			status = "✗"
		}
		if u.Err != "" {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t错误: %s\t\t\t\t\t\t\n", status, u.Unit, u.Expected, u.Err)
			continue
		}
		res := u.Result
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%.2f\t%s\t%s\t%s\t%d\t%d\n",
			status, u.Unit, u.Expected, res.Direction, res.Confidence,
			optMs(res.EventTimeA), optMs(res.EventTimeB), optMs(res.GapMs),
			res.SideAMax, res.SideBMax,
		)
	}
	rw.err = tw.Flush()
}

func (rw *reportWriter) confusion(run RunReport) {
	if rw.err != nil {
		return
	}
	rw.printf("  混淆矩阵 (行=标签, 列=检测):\n")
	tw := tabwriter.NewWriter(rw.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "    \t")
	for _, d := range model.Directions {
		fmt.Fprintf(tw, "%s\t", d)
	}
	fmt.Fprintln(tw)
	for _, expected := range model.Directions {
		fmt.Fprintf(tw, "    %s\t", expected)
		for _, predicted := range model.Directions {
			fmt.Fprintf(tw, "%d\t", run.Stats.Confusion[expected.Index()][predicted.Index()])
		}
		fmt.Fprintln(tw)
	}
	rw.err = tw.Flush()
}

func (rw *reportWriter) summary(r *Report) {
	if rw.err != nil {
		return
	}
	tw := tabwriter.NewWriter(rw.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "运行\t参数\t准确率\ta_to_b\tb_to_a\tunknown\t失败\t")
	for i, run := range r.Runs {
		mark := ""
		if i == r.Best {
			mark = " *"
		}
		s := run.Stats
		fmt.Fprintf(tw, "%s%s\t%s\t%.1f%%\t%s\t%s\t%s\t%d\t\n",
			run.Run.Name(), mark, run.Run.Detection.String(), 100*s.Accuracy,
			classCell(s.Class(model.DirectionAToB).Correct, s.Class(model.DirectionAToB).Total),
			classCell(s.Class(model.DirectionBToA).Correct, s.Class(model.DirectionBToA).Total),
			classCell(s.Class(model.DirectionUnknown).Correct, s.Class(model.DirectionUnknown).Total),
			s.Failed,
		)
	}
	rw.err = tw.Flush()
}

func classCell(correct, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", correct, total)
}

func optMs(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%dms", *v)
}
