// Package fastparse 提供传感器数据字段的字符串解析函数。
// 使用 strconv 进行转换，避免在逐行解析路径使用 fmt.Sscanf。
package fastparse

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrEmpty 字段为空
var ErrEmpty = errors.New("字段为空")

// ParseInt 解析整数字符串
// 允许首尾空白；导出工具偶尔写出 "123.0" 形式，整数值的浮点表示同样接受。
// 参数 s: 待解析的字符串，如 "12345"
// 返回: 解析后的整数和可能的错误
func ParseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmpty
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return v, nil
	}
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, err
	}
	return int64(f), nil
}
