package analysis

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Render 输出单个会话的统计报告
func Render(w io.Writer, s SessionStats) error {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "\n%s\n会话分析: %s\n%s\n", rule, s.Name, rule)
	fmt.Fprintf(&b, "\n--- 时序 ---\n")
	fmt.Fprintf(&b, "时间跨度: %d ms (%.2f 秒)\n", s.SpanMs, float64(s.SpanMs)/1000)
	fmt.Fprintf(&b, "完整读取轮数: %d\n", s.Cycles)
	fmt.Fprintf(&b, "固件读取频率: %.1f Hz\n", s.ReadRateHz)
	fmt.Fprintf(&b, "平均读取间隔: %.2f ms\n", s.GapMeanMs)
	fmt.Fprintf(&b, "间隔范围: %.0f - %.0f ms\n", s.GapMinMs, s.GapMaxMs)
	fmt.Fprintf(&b, "\n--- 传感器 ---\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "传感器\t读数\t基线\t峰值\t幅度\tSNR\t变化\t有效 Hz\t冗余度\t")
	for _, ss := range s.Sensors {
		fmt.Fprintf(tw, "%s\t%d\t%.0f\t%.0f\t%.0f\t%.1fx\t%d\t%.1f\t%.1fx\t\n",
			ss.Name, ss.Reads, ss.Baseline, ss.Peak, ss.Range, ss.SNR, ss.Changes, ss.EffectiveHz, ss.Redundancy)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n平均冗余度: %.1fx\n估计积分时间: %s\n", s.AvgRedundancy, s.IntegrationTime)
	return err
}

// RenderComparison 多会话对比，每个会话一行
func RenderComparison(w io.Writer, sessions []SessionStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "文件\t时长(ms)\t轮数\t读取频率\t冗余度\t积分时间\t")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f Hz\t%.1fx\t%s\t\n",
			s.Name, s.SpanMs, s.Cycles, s.ReadRateHz, s.AvgRedundancy, s.IntegrationTime)
	}
	return tw.Flush()
}
