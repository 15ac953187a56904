// Package backoff 数据流断线重连的指数退避。
// 延迟 = base * 2^attempt，上限 max，并叠加 ±jitter 比例的随机抖动。
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Backoff 指数退避计算器（非并发安全，由重连循环独占）
type Backoff struct {
	base    time.Duration
	max     time.Duration
	jitter  float64
	attempt int
}

// New 创建退避计算器
// 参数 base: 首次等待时间
// 参数 max: 等待时间上限（抖动前）
// 参数 jitter: 抖动比例，0.2 表示 ±20%
func New(base, max time.Duration, jitter float64) *Backoff {
	return &Backoff{base: base, max: max, jitter: jitter}
}

// FromMs 以毫秒配置创建退避计算器，抖动固定 ±20%
func FromMs(baseMs, maxMs int) *Backoff {
	return New(time.Duration(baseMs)*time.Millisecond, time.Duration(maxMs)*time.Millisecond, 0.2)
}

// NewDefault 基础 1s、上限 30s、抖动 ±20%
func NewDefault() *Backoff {
	return FromMs(1000, 30000)
}

// Next 返回下一次等待时间并递增重试次数
func (b *Backoff) Next() time.Duration {
	delay := b.max
	// 位移超过 62 位会溢出，此时直接取上限
	if b.attempt < 62 {
		if d := b.base << b.attempt; d>>b.attempt == b.base && d > 0 && d < b.max {
			delay = d
		}
	}
	if b.jitter > 0 {
		delay = time.Duration(float64(delay) * (1 + (rand.Float64()*2-1)*b.jitter))
	}
	b.attempt++
	return delay
}

// Wait 等待 Next() 给出的时间，ctx 取消时提前返回 ctx.Err()
func (b *Backoff) Wait(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Reset 连接成功后清零重试次数
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt 当前重试次数
func (b *Backoff) Attempt() int {
	return b.attempt
}
