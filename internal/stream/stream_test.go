package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/core/model"
)

const sampleBatch = `{
  "session_id": "s-42",
  "device_id": "gate-1",
  "batch_offset": 100,
  "batch_size": 3,
  "final": true,
  "readings": [
    {"ts": 12, "pos": 1, "pcb": 1, "side": 2, "prox": 40, "amb": 3},
    {"ts": 10, "pos": 0, "pcb": 1, "side": 1, "prox": 7, "amb": 3},
    {"ts": 12, "pos": 0, "pcb": 1, "side": 1, "prox": 9, "amb": 3}
  ]
}`

func TestParseBatch(t *testing.T) {
	b, err := ParseBatch([]byte(sampleBatch))
	require.NoError(t, err)
	assert.Equal(t, "s-42", b.SessionID)
	assert.Equal(t, "gate-1", b.DeviceID)
	assert.Equal(t, 100, b.Offset)
	assert.True(t, b.Final)
	assert.NotZero(t, b.ArrivedNs)

	require.Len(t, b.Readings, 3)
	assert.Equal(t, model.SensorReading{TimestampMs: 10, ModuleID: 1, Side: model.SensorSide1, Proximity: 7}, b.Readings[0])
	assert.Equal(t, model.SideA, b.Readings[1].LogicalSide())
}

func TestParseBatch_Rejects(t *testing.T) {
	cases := map[string]string{
		"非 JSON":      `not json`,
		"缺少会话":        `{"readings": []}`,
		"缺少接近度":       `{"session_id": "x", "readings": [{"ts": 1, "pcb": 1, "side": 1}]}`,
		"side 超出范围":   `{"session_id": "x", "readings": [{"ts": 1, "pcb": 1, "side": 3, "prox": 1}]}`,
		"负数接近度":       `{"session_id": "x", "readings": [{"ts": 1, "pcb": 1, "side": 1, "prox": -1}]}`,
	}
	for name, msg := range cases {
		_, err := ParseBatch([]byte(msg))
		assert.Error(t, err, name)
	}

	_, err := ParseBatch([]byte(`{"readings": []}`))
	assert.ErrorIs(t, err, ErrMissingSessionID)
}

func TestIsPongAndControl(t *testing.T) {
	assert.True(t, IsPong([]byte("pong")))
	assert.True(t, IsPong([]byte(" pong\n")))
	assert.False(t, IsPong([]byte("ping")))

	assert.True(t, IsControl([]byte(`{"event":"subscribed","topic":"motionplay/+/data"}`)))
	assert.False(t, IsControl([]byte(sampleBatch)))
	assert.False(t, IsControl([]byte("pong")))
}

// gateway 测试网关：校验订阅请求，应答 ping，随后推送一条坏消息与一个批次
func gateway(t *testing.T, subscribed chan<- SubscribeRequest) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req SubscribeRequest
		if json.Unmarshal(data, &req) == nil {
			subscribed <- req
		}

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"subscribed"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"session_id":`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(sampleBatch))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "ping" {
				_ = conn.WriteMessage(websocket.TextMessage, []byte("pong"))
			}
		}
	}))
}

func TestClient_ReceivesBatches(t *testing.T) {
	subscribed := make(chan SubscribeRequest, 1)
	srv := gateway(t, subscribed)
	defer srv.Close()

	cfg := &config.StreamConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		Topic:          "motionplay/+/data",
		PingIntervalMs: 20,
		PongTimeoutMs:  1000,
	}
	c := NewClient(cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case req := <-subscribed:
		assert.Equal(t, "subscribe", req.Op)
		assert.Equal(t, "motionplay/+/data", req.Topic)
	case <-ctx.Done():
		t.Fatal("未收到订阅请求")
	}

	select {
	case b := <-c.Batches():
		require.NotNil(t, b)
		assert.Equal(t, "s-42", b.SessionID)
		assert.Len(t, b.Readings, 3)
	case <-ctx.Done():
		t.Fatal("未收到批次")
	}

	require.Eventually(t, func() bool { return c.Metrics().ParseErrorCount == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run 未在取消后返回")
	}
	_, ok := <-c.Batches()
	assert.False(t, ok, "Run 返回后批次通道应关闭")
	assert.NoError(t, c.Close())
}
