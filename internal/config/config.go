// Package config 负责加载和验证 YAML 配置文件。
// 提供检测参数、验证语料、实时数据流、训练窗口导出与输出等配置项。
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"transit-direction-validator/internal/core/model"
)

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Detection 检测参数（实时监控使用，也是验证档位的默认值）
	Detection DetectionConfig `yaml:"detection"`
	// Validation 标注语料验证配置
	Validation ValidationConfig `yaml:"validation"`
	// Stream 实时数据流配置
	Stream StreamConfig `yaml:"stream"`
	// Export 训练窗口导出配置
	Export ExportConfig `yaml:"export"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// DetectionConfig 单次分析的参数集（分析期间不可变）
type DetectionConfig struct {
	// Method 检测策略: rise_start, center_of_mass, hybrid
	Method string `yaml:"method" json:"method"`
	// SmoothingWindow 滑动平均窗口（尾随样本数，正整数）
	SmoothingWindow int `yaml:"smoothing_window" json:"smoothing_window"`
	// MinRise 最小起升幅度，低于此值的波动视为噪声
	MinRise float64 `yaml:"min_rise" json:"min_rise"`
	// MaxPeakGapMs 两侧事件被视为同一次穿越的最大时间间隔（毫秒）
	MaxPeakGapMs int64 `yaml:"max_peak_gap_ms" json:"max_peak_gap_ms"`
}

// ValidationConfig 标注语料验证配置
type ValidationConfig struct {
	// DataDir 标注语料目录（*.csv / *.json）
	DataDir string `yaml:"data_dir"`
	// Concurrency 并行执行的运行数
	Concurrency int `yaml:"concurrency"`
	// TargetAccuracy 目标总体准确率（0-1）
	TargetAccuracy float64 `yaml:"target_accuracy"`
	// Profiles 命名参数档位
	Profiles []ProfileConfig `yaml:"profiles"`
	// Methods 参与比较的检测策略
	Methods []string `yaml:"methods"`
}

// ProfileConfig 命名参数档位
// 未设置的字段继承 detection 段。min_rise 与 max_peak_gap_ms 的 0 是合法取值，
// 因此用指针区分“未设置”与显式 0。
type ProfileConfig struct {
	// Name 档位名称，如 Default
	Name string `yaml:"name"`
	// SmoothingWindow 滑动平均窗口，0 表示继承
	SmoothingWindow int `yaml:"smoothing_window"`
	// MinRise 最小起升幅度，nil 表示继承
	MinRise *float64 `yaml:"min_rise"`
	// MaxPeakGapMs 最大峰值间隔（毫秒），nil 表示继承
	MaxPeakGapMs *int64 `yaml:"max_peak_gap_ms"`
}

// Float64Ptr 返回 v 的指针，用于构造档位
func Float64Ptr(v float64) *float64 { return &v }

// Int64Ptr 返回 v 的指针，用于构造档位
func Int64Ptr(v int64) *int64 { return &v }

// StreamConfig 实时数据流（WebSocket）配置
type StreamConfig struct {
	// URL WebSocket 地址
	URL string `yaml:"url"`
	// Topic 订阅主题，如 motionplay/+/data
	Topic string `yaml:"topic"`
	// PingIntervalMs 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// PongTimeoutMs 心跳响应超时（毫秒）
	PongTimeoutMs int `yaml:"pong_timeout_ms"`
	// SessionIdleMs 会话空闲超时（毫秒），超时后视为会话结束并执行检测
	SessionIdleMs int `yaml:"session_idle_ms"`
	// ReconnectBaseMs 重连退避基础间隔（毫秒）
	ReconnectBaseMs int `yaml:"reconnect_base_ms"`
	// ReconnectMaxMs 重连退避最大间隔（毫秒）
	ReconnectMaxMs int `yaml:"reconnect_max_ms"`
}

// ExportConfig 训练窗口导出配置
type ExportConfig struct {
	// Enabled 是否导出训练窗口
	Enabled bool `yaml:"enabled"`
	// WindowMs 窗口长度（毫秒，每行 1ms）
	WindowMs int `yaml:"window_ms"`
	// Alignment 事件对齐方式: trigger（锚点位于 2/3 处）或 center
	Alignment string `yaml:"alignment"`
	// NormMax 归一化常数，必须与固件保持一致
	NormMax float64 `yaml:"norm_max"`
	// Augment 是否做 A/B 通道交换增强
	Augment bool `yaml:"augment"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// ResultsEnabled 是否输出 JSONL 结果文件
	ResultsEnabled bool `yaml:"results_enabled"`
	// PlotsEnabled 是否为最佳运行绘制每个单元的信号图
	PlotsEnabled bool `yaml:"plots_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
	// MetricsIntervalMs 指标输出间隔（毫秒）
	MetricsIntervalMs int `yaml:"metrics_interval_ms"`
}

// DefaultDetection 返回实践中使用的默认检测参数
// window=3, minRise=10, maxPeakGapMs=100
func DefaultDetection() DetectionConfig {
	return DetectionConfig{
		Method:          model.MethodHybrid.String(),
		SmoothingWindow: 3,
		MinRise:         10,
		MaxPeakGapMs:    100,
	}
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// detection 段先置默认值再解码，显式写出的 0 不会被 SetDefaults 覆盖
	cfg := Config{Detection: DefaultDetection()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// SetDefaults 设置配置默认值
// 数值字段为 0 视为未设置；detection.min_rise 与 detection.max_peak_gap_ms 例外，
// 它们的 0 是合法取值，默认值由 Load 在解码前预置（代码构造配置时从 DefaultDetection 开始）。
func (c *Config) SetDefaults() {
	if c.App.Name == "" {
		c.App.Name = "transit-direction-validator"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	def := DefaultDetection()
	if c.Detection.Method == "" {
		c.Detection.Method = def.Method
	}
	if c.Detection.SmoothingWindow == 0 {
		c.Detection.SmoothingWindow = def.SmoothingWindow
	}

	// 验证默认值：三个档位 × 三种策略
	if c.Validation.DataDir == "" {
		c.Validation.DataDir = "./session_data/labeled-data/group1"
	}
	if c.Validation.Concurrency == 0 {
		c.Validation.Concurrency = 4
	}
	if c.Validation.TargetAccuracy == 0 {
		c.Validation.TargetAccuracy = 0.9
	}
	if len(c.Validation.Profiles) == 0 {
		c.Validation.Profiles = []ProfileConfig{
			{Name: "Default", SmoothingWindow: 3, MinRise: Float64Ptr(10), MaxPeakGapMs: Int64Ptr(100)},
			{Name: "Sensitive", SmoothingWindow: 3, MinRise: Float64Ptr(8), MaxPeakGapMs: Int64Ptr(120)},
			{Name: "Smoothed", SmoothingWindow: 5, MinRise: Float64Ptr(10), MaxPeakGapMs: Int64Ptr(100)},
		}
	}
	for i := range c.Validation.Profiles {
		p := &c.Validation.Profiles[i]
		if p.SmoothingWindow == 0 {
			p.SmoothingWindow = c.Detection.SmoothingWindow
		}
		if p.MinRise == nil {
			p.MinRise = Float64Ptr(c.Detection.MinRise)
		}
		if p.MaxPeakGapMs == nil {
			p.MaxPeakGapMs = Int64Ptr(c.Detection.MaxPeakGapMs)
		}
	}
	if len(c.Validation.Methods) == 0 {
		for _, m := range model.Methods {
			c.Validation.Methods = append(c.Validation.Methods, m.String())
		}
	}

	// 数据流默认值
	if c.Stream.Topic == "" {
		c.Stream.Topic = "motionplay/+/data"
	}
	if c.Stream.PingIntervalMs == 0 {
		c.Stream.PingIntervalMs = 25000 // 25 秒
	}
	if c.Stream.PongTimeoutMs == 0 {
		c.Stream.PongTimeoutMs = 10000 // 10 秒
	}
	if c.Stream.SessionIdleMs == 0 {
		c.Stream.SessionIdleMs = 2000 // 2 秒
	}
	if c.Stream.ReconnectBaseMs == 0 {
		c.Stream.ReconnectBaseMs = 1000
	}
	if c.Stream.ReconnectMaxMs == 0 {
		c.Stream.ReconnectMaxMs = 30000
	}

	// 导出默认值（与训练脚本保持一致）
	if c.Export.WindowMs == 0 {
		c.Export.WindowMs = 300
	}
	if c.Export.Alignment == "" {
		c.Export.Alignment = "trigger"
	}
	if c.Export.NormMax == 0 {
		c.Export.NormMax = 490
	}

	// 输出默认值
	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
	if c.Output.MetricsIntervalMs == 0 {
		c.Output.MetricsIntervalMs = 10000 // 10 秒
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	// 验证检测参数
	errs = append(errs, validateDetection("detection", c.Detection)...)

	// 验证语料配置
	if c.Validation.DataDir == "" {
		errs = append(errs, "validation.data_dir: 语料目录不能为空")
	}
	if c.Validation.Concurrency < 0 {
		errs = append(errs, "validation.concurrency: 并发数不能为负数")
	}
	if c.Validation.TargetAccuracy < 0 || c.Validation.TargetAccuracy > 1 {
		errs = append(errs, "validation.target_accuracy: 目标准确率必须在 0-1 之间")
	}
	if len(c.Validation.Profiles) == 0 {
		errs = append(errs, "validation.profiles: 至少需要配置一个参数档位")
	}
	seen := make(map[string]bool, len(c.Validation.Profiles))
	for i, p := range c.Validation.Profiles {
		field := fmt.Sprintf("validation.profiles[%d]", i)
		if p.Name == "" {
			errs = append(errs, field+".name: 档位名称不能为空")
		} else if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("%s.name: 档位名称 '%s' 重复", field, p.Name))
		}
		seen[p.Name] = true
		errs = append(errs, validateDetection(field, p.Detection(c.Detection.Method))...)
	}
	if len(c.Validation.Methods) == 0 {
		errs = append(errs, "validation.methods: 至少需要一种检测策略")
	}
	for i, m := range c.Validation.Methods {
		if _, err := model.ParseMethod(m); err != nil {
			errs = append(errs, fmt.Sprintf("validation.methods[%d]: %v", i, err))
		}
	}

	// 验证数据流配置（URL 可为空，由 monitor 启动时检查）
	if c.Stream.URL != "" && !strings.HasPrefix(c.Stream.URL, "ws://") && !strings.HasPrefix(c.Stream.URL, "wss://") {
		errs = append(errs, fmt.Sprintf("stream.url: 仅支持 ws:// 或 wss:// 地址，当前值: %s", c.Stream.URL))
	}
	if c.Stream.PingIntervalMs <= 0 {
		errs = append(errs, "stream.ping_interval_ms: 心跳间隔必须为正数")
	}
	if c.Stream.PongTimeoutMs <= 0 {
		errs = append(errs, "stream.pong_timeout_ms: 心跳超时必须为正数")
	}
	if c.Stream.SessionIdleMs <= 0 {
		errs = append(errs, "stream.session_idle_ms: 会话空闲超时必须为正数")
	}
	if c.Stream.ReconnectBaseMs <= 0 || c.Stream.ReconnectMaxMs < c.Stream.ReconnectBaseMs {
		errs = append(errs, fmt.Sprintf("stream.reconnect_*: 需满足 0 < base <= max，当前值: %d/%d", c.Stream.ReconnectBaseMs, c.Stream.ReconnectMaxMs))
	}

	// 验证导出配置
	if c.Export.WindowMs <= 0 {
		errs = append(errs, "export.window_ms: 窗口长度必须为正数")
	}
	if c.Export.Alignment != "trigger" && c.Export.Alignment != "center" {
		errs = append(errs, fmt.Sprintf("export.alignment: 无效的对齐方式 '%s'，有效值: trigger, center", c.Export.Alignment))
	}
	if c.Export.NormMax < 0 {
		errs = append(errs, "export.norm_max: 归一化常数不能为负数")
	}

	if c.Output.BufferSize < 0 {
		errs = append(errs, "output.buffer_size: 缓冲区大小不能为负数")
	}

	// 验证日志级别
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateDetection 验证一组检测参数
// 参数 field: 字段前缀，用于错误消息
func validateDetection(field string, d DetectionConfig) []string {
	var errs []string
	if _, err := model.ParseMethod(d.Method); err != nil {
		errs = append(errs, fmt.Sprintf("%s.method: %v", field, err))
	}
	if d.SmoothingWindow <= 0 {
		errs = append(errs, fmt.Sprintf("%s.smoothing_window: 平滑窗口必须为正整数，当前值: %d", field, d.SmoothingWindow))
	}
	if d.MinRise < 0 {
		errs = append(errs, fmt.Sprintf("%s.min_rise: 最小起升幅度不能为负数，当前值: %f", field, d.MinRise))
	}
	if d.MaxPeakGapMs < 0 {
		errs = append(errs, fmt.Sprintf("%s.max_peak_gap_ms: 最大峰值间隔不能为负数，当前值: %d", field, d.MaxPeakGapMs))
	}
	return errs
}

// Detection 将档位展开为指定策略的检测参数
// 未继承（SetDefaults 之前）的 nil 字段按 0 展开。
func (p ProfileConfig) Detection(method string) DetectionConfig {
	d := DetectionConfig{Method: method, SmoothingWindow: p.SmoothingWindow}
	if p.MinRise != nil {
		d.MinRise = *p.MinRise
	}
	if p.MaxPeakGapMs != nil {
		d.MaxPeakGapMs = *p.MaxPeakGapMs
	}
	return d
}

// MethodValue 解析检测策略
func (d DetectionConfig) MethodValue() (model.Method, error) {
	return model.ParseMethod(d.Method)
}

// String 返回参数摘要，用于报告表头
func (d DetectionConfig) String() string {
	return fmt.Sprintf("smoothing=%d, min_rise=%g, max_gap=%dms", d.SmoothingWindow, d.MinRise, d.MaxPeakGapMs)
}
