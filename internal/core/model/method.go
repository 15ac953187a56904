package model

import (
	"fmt"
	"strings"
)

// Method 检测策略（封闭枚举）
type Method uint8

const (
	// MethodRiseStart 基于导数阈值的起升时间检测
	MethodRiseStart Method = iota + 1
	// MethodCenterOfMass 基于加权时间质心的检测
	MethodCenterOfMass
	// MethodHybrid 起升确认 + 质心定向
	MethodHybrid
)

// Methods 按声明顺序列出全部检测策略
var Methods = []Method{MethodRiseStart, MethodCenterOfMass, MethodHybrid}

// String 返回策略的配置名称
func (m Method) String() string {
	switch m {
	case MethodRiseStart:
		return "rise_start"
	case MethodCenterOfMass:
		return "center_of_mass"
	case MethodHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("method(%d)", uint8(m))
	}
}

// ParseMethod 解析策略名称（大小写不敏感，接受 rise/com 简写）
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rise_start", "rise":
		return MethodRiseStart, nil
	case "center_of_mass", "com":
		return MethodCenterOfMass, nil
	case "hybrid":
		return MethodHybrid, nil
	default:
		return 0, fmt.Errorf("未知检测策略 '%s'，有效值: rise_start, center_of_mass, hybrid", s)
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (m *Method) UnmarshalText(b []byte) error {
	v, err := ParseMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
