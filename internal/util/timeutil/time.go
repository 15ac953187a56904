// Package timeutil 提供本地到达时间相关的工具函数。
// 批次到达时间、会话空闲判断与心跳超时都基于这里的纳秒时间戳。
package timeutil

import (
	"time"
)

var (
	// baseTime 基准时间点（包含单调时钟读数）
	baseTime = time.Now()
	// baseUnixNs 基准时间点对应的 Unix 纳秒时间戳
	baseUnixNs = baseTime.UnixNano()
)

// NowNano 获取当前时间的纳秒时间戳
// 单调时钟 + 启动时 Unix 时间：系统时间跳变时时间差仍保持单调，
// 会话空闲判断不会因 NTP 校时误触发。
// 返回: 当前时间的 Unix 纳秒时间戳
func NowNano() int64 {
	return baseUnixNs + time.Since(baseTime).Nanoseconds()
}

// NowMs 获取当前时间的毫秒时间戳
func NowMs() int64 {
	return NowNano() / 1_000_000
}

// NanoToMs 纳秒转毫秒（截断）
func NanoToMs(ns int64) int64 {
	return ns / 1_000_000
}

// MsToNano 毫秒转纳秒
func MsToNano(ms int64) int64 {
	return ms * 1_000_000
}
