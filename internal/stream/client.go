// Package stream 实现实时批次数据流的 WebSocket 客户端。
// 设备按会话分批上传读数（{session_id, batch_offset, readings, final}），
// 网关将批次转发到 WebSocket；客户端订阅主题后持续接收批次。
// 心跳机制: 文本 ping/pong，间隔与超时由配置指定
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/util/backoff"
	"transit-direction-validator/internal/util/timeutil"
)

// Client 批次数据流客户端
type Client struct {
	cfg    *config.StreamConfig
	logger *zap.Logger
	// conn WebSocket 连接
	conn *websocket.Conn
	// connMu 连接锁，同时串行化写入
	connMu sync.Mutex
	// batchCh 批次输出通道，由 Run 在退出时关闭
	batchCh chan *Batch

	metrics   ConnectionMetrics
	metricsMu sync.RWMutex

	lastMsgNs      atomic.Int64
	lastPingSentNs atomic.Int64
	lastPongRecvNs atomic.Int64
	batchCount     atomic.Int64

	backoff *backoff.Backoff
	closed  atomic.Bool

	parseErrSampleCount atomic.Uint64
	lastParseErrLogNs   atomic.Int64
}

// NewClient 创建数据流客户端
// 参数 cfg: 数据流配置
// 参数 logger: 日志记录器
func NewClient(cfg *config.StreamConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	bo := backoff.NewDefault()
	if cfg.ReconnectBaseMs > 0 && cfg.ReconnectMaxMs >= cfg.ReconnectBaseMs {
		bo = backoff.FromMs(cfg.ReconnectBaseMs, cfg.ReconnectMaxMs)
	}
	return &Client{
		cfg:     cfg,
		logger:  logger.Named("stream"),
		batchCh: make(chan *Batch, 256),
		backoff: bo,
	}
}

// Connect 建立 WebSocket 连接并订阅主题
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	header := http.Header{}
	header.Set("User-Agent", "transit-direction-validator/1.0")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("连接数据流失败: %w", err)
	}

	data, err := json.Marshal(SubscribeRequest{Op: "subscribe", Topic: c.cfg.Topic})
	if err != nil {
		conn.Close()
		return fmt.Errorf("序列化订阅请求失败: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		return fmt.Errorf("发送订阅请求失败: %w", err)
	}

	c.conn = conn
	c.backoff.Reset()
	c.logger.Info("数据流连接成功", zap.String("url", c.cfg.URL), zap.String("topic", c.cfg.Topic))
	return nil
}

// Run 启动读取循环与心跳循环，直到 ctx 取消或 Close
// 返回时关闭批次通道。
func (c *Client) Run(ctx context.Context) {
	defer close(c.batchCh)

	go c.heartbeatLoop(ctx)
	go c.metricsLoop(ctx)
	go func() {
		<-ctx.Done()
		c.closeConn()
	}()

	c.readLoop(ctx)
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil || c.closed.Load() {
			return
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			c.reconnect(ctx)
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.closed.Load() {
				return
			}
			c.logger.Warn("读取数据流消息失败", zap.Error(err))
			c.incrementReconnectCount()
			c.closeConn()
			continue
		}

		nowNs := timeutil.NowNano()
		c.lastMsgNs.Store(nowNs)

		if IsPong(data) {
			c.lastPongRecvNs.Store(nowNs)
			if lastPing := c.lastPingSentNs.Load(); lastPing > 0 {
				c.metricsMu.Lock()
				c.metrics.WsRttMs = timeutil.NanoToMs(nowNs - lastPing)
				c.metricsMu.Unlock()
			}
			continue
		}
		if IsControl(data) {
			c.logger.Debug("收到控制消息", zap.ByteString("data", data))
			continue
		}

		batch, err := ParseBatch(data)
		if err != nil {
			c.incrementParseErrorCount()
			c.maybeLogParseError(err, data)
			continue
		}

		c.batchCount.Add(1)
		select {
		case c.batchCh <- batch:
		case <-ctx.Done():
			return
		}
	}
}

// heartbeatLoop 定期发送 ping，超时未收到 pong 时断开连接触发重连
func (c *Client) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(c.cfg.PingIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.closed.Load() {
				return
			}

			// 超时检查放在发送新 ping 之前，否则 lastPingSentNs 会被覆盖
			lastPing := c.lastPingSentNs.Load()
			if lastPing > 0 && c.lastPongRecvNs.Load() < lastPing &&
				timeutil.NowNano()-lastPing > timeutil.MsToNano(int64(c.cfg.PongTimeoutMs)) {
				c.logger.Warn("数据流心跳超时，触发重连")
				c.incrementReconnectCount()
				c.closeConn()
				continue
			}

			c.connMu.Lock()
			conn := c.conn
			if conn == nil {
				c.connMu.Unlock()
				continue
			}
			pingTime := timeutil.NowNano()
			err := conn.WriteMessage(websocket.TextMessage, []byte("ping"))
			c.connMu.Unlock()
			if err != nil {
				c.logger.Warn("发送 ping 失败", zap.Error(err))
				continue
			}
			c.lastPingSentNs.Store(pingTime)
		}
	}
}

// metricsLoop 每秒更新批次速率与消息新鲜度
func (c *Client) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastCount int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count := c.batchCount.Load()
			rate := float64(count - lastCount)
			lastCount = count

			var ageMs int64
			if lastMsg := c.lastMsgNs.Load(); lastMsg > 0 {
				ageMs = timeutil.NanoToMs(timeutil.NowNano() - lastMsg)
			}

			c.metricsMu.Lock()
			c.metrics.BatchesPerSec = rate
			c.metrics.LastMessageAgeMs = ageMs
			c.metricsMu.Unlock()
		}
	}
}

func (c *Client) reconnect(ctx context.Context) {
	c.logger.Info("准备重连数据流", zap.Int("attempt", c.backoff.Attempt()+1))
	if err := c.backoff.Wait(ctx); err != nil {
		return
	}

	if err := c.Connect(ctx); err != nil {
		c.logger.Error("重连数据流失败", zap.Error(err))
	}
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close 关闭客户端；批次通道在 Run 返回时关闭
func (c *Client) Close() error {
	c.closed.Store(true)
	c.closeConn()
	c.logger.Info("数据流客户端已关闭")
	return nil
}

// Batches 批次通道
func (c *Client) Batches() <-chan *Batch {
	return c.batchCh
}

// Metrics 连接指标快照
func (c *Client) Metrics() ConnectionMetrics {
	c.metricsMu.RLock()
	defer c.metricsMu.RUnlock()
	return c.metrics
}

func (c *Client) incrementReconnectCount() {
	c.metricsMu.Lock()
	c.metrics.ReconnectCount++
	c.metricsMu.Unlock()
}

func (c *Client) incrementParseErrorCount() {
	c.metricsMu.Lock()
	c.metrics.ParseErrorCount++
	c.metricsMu.Unlock()
}

// maybeLogParseError 采样记录解析错误：首条必记，之后每 100 条记 1 条，且至少间隔 1 分钟
func (c *Client) maybeLogParseError(err error, data []byte) {
	count := c.parseErrSampleCount.Add(1)
	if count != 1 && count%100 != 0 {
		return
	}

	nowNs := timeutil.NowNano()
	if last := c.lastParseErrLogNs.Load(); last > 0 && nowNs-last < int64(time.Minute) {
		return
	}
	c.lastParseErrLogNs.Store(nowNs)

	sample := data
	if len(sample) > 200 {
		sample = sample[:200]
	}
	c.logger.Warn("解析批次失败（采样）", zap.Error(err), zap.ByteString("data", sample))
}
