// Package sessionplot 将单个会话的双侧信号绘制为 PNG，用于人工复核检测结果。
// 图中包含两侧原始聚合信号、平滑信号，以及检测器给出的两侧事件时间。
package sessionplot

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/core/model"
	"transit-direction-validator/internal/core/signal"
)

var (
	colorA = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorB = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

// Unit 一个待绘制的会话
type Unit struct {
	// Name 单元名称，用于标题与文件名
	Name string
	// Expected 标签方向，未知标签时为空
	Expected model.Direction
	// Readings 会话读数
	Readings []model.SensorReading
	// Result 检测结果
	Result model.DetectionResult
}

// Plotter 会话图绘制器
type Plotter struct {
	outputDir string
	width     vg.Length
	height    vg.Length
}

// NewPlotter 创建绘制器
// 参数 outputDir: PNG 输出目录，不存在时自动创建
func NewPlotter(outputDir string) (*Plotter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建绘图目录失败: %w", err)
	}
	return &Plotter{outputDir: outputDir, width: 12 * vg.Inch, height: 5 * vg.Inch}, nil
}

// FileName 单元对应的 PNG 文件名
func FileName(unitName string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", " ", "_")
	base := strings.TrimSuffix(unitName, filepath.Ext(unitName))
	return r.Replace(base) + ".png"
}

// Plot 绘制单元并保存
// 返回: PNG 文件路径
func (p *Plotter) Plot(u Unit, cfg config.DetectionConfig) (string, error) {
	a, b := signal.Aggregate(u.Readings)

	pl := plot.New()
	title := fmt.Sprintf("%s  %s  detected=%s conf=%.2f", u.Name, cfg.String(), u.Result.Direction, u.Result.Confidence)
	if u.Expected != "" {
		title += "  label=" + string(u.Expected)
	}
	pl.Title.Text = title
	pl.X.Label.Text = "t (ms)"
	pl.Y.Label.Text = "proximity"

	ymax := 1.0
	if err := addSide(pl, "A", a, cfg.SmoothingWindow, colorA, &ymax); err != nil {
		return "", err
	}
	if err := addSide(pl, "B", b, cfg.SmoothingWindow, colorB, &ymax); err != nil {
		return "", err
	}
	if err := addMarker(pl, "A event", u.Result.EventTimeA, ymax, colorA); err != nil {
		return "", err
	}
	if err := addMarker(pl, "B event", u.Result.EventTimeB, ymax, colorB); err != nil {
		return "", err
	}

	pl.Legend.Top = true
	pl.Legend.Left = false
	pl.Legend.XOffs = -10
	pl.Legend.YOffs = -10

	path := filepath.Join(p.outputDir, FileName(u.Name))
	if err := pl.Save(p.width, p.height, path); err != nil {
		return "", fmt.Errorf("保存图像失败: %w", err)
	}
	return path, nil
}

// addSide 添加一侧的原始与平滑曲线
func addSide(pl *plot.Plot, name string, s signal.SideSignal, window int, c color.Color, ymax *float64) error {
	if s.Empty() {
		return nil
	}

	raw := make(plotter.XYs, s.Len())
	for i := range s.Timestamps {
		raw[i] = plotter.XY{X: float64(s.Timestamps[i]), Y: float64(s.Values[i])}
		if raw[i].Y > *ymax {
			*ymax = raw[i].Y
		}
	}
	smoothed := signal.Smooth(s, window)
	sm := make(plotter.XYs, smoothed.Len())
	for i := range smoothed.Timestamps {
		sm[i] = plotter.XY{X: float64(smoothed.Timestamps[i]), Y: smoothed.Values[i]}
	}

	rawLine, err := plotter.NewLine(raw)
	if err != nil {
		return fmt.Errorf("创建 %s 原始曲线失败: %w", name, err)
	}
	rawLine.Color = c
	rawLine.Width = vg.Points(0.5)
	rawLine.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}

	smLine, err := plotter.NewLine(sm)
	if err != nil {
		return fmt.Errorf("创建 %s 平滑曲线失败: %w", name, err)
	}
	smLine.Color = c
	smLine.Width = vg.Points(1.5)

	pl.Add(rawLine, smLine)
	pl.Legend.Add(name+" raw", rawLine)
	pl.Legend.Add(name+" smoothed", smLine)
	return nil
}

// addMarker 在事件时间处画竖线
// 图中文字使用 ASCII，默认字体不含中文字形。
func addMarker(pl *plot.Plot, name string, ts *int64, ymax float64, c color.Color) error {
	if ts == nil {
		return nil
	}
	x := float64(*ts)
	line, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: ymax}})
	if err != nil {
		return fmt.Errorf("创建 %s 标记失败: %w", name, err)
	}
	line.Color = c
	line.Width = vg.Points(1)
	line.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	pl.Add(line)
	pl.Legend.Add(fmt.Sprintf("%s %dms", name, *ts), line)
	return nil
}
