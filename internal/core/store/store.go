// Package store 按会话累积实时批次中的读数。
// 使用单写者模式避免锁：只由监控主循环 goroutine 调用。
package store

import (
	"sort"

	"transit-direction-validator/internal/core/model"
	"transit-direction-validator/internal/ingest"
)

// Session 累积中的会话
type Session struct {
	// ID 会话 ID
	ID string
	// Readings 已接收的读数（Take 时排序）
	Readings []model.SensorReading
	// Batches 已接收批次数
	Batches int
	// FirstArrivalNs 首个批次到达时间
	FirstArrivalNs int64
	// LastArrivalNs 最近批次到达时间
	LastArrivalNs int64
	// Final 是否已收到最后一批
	Final bool
}

// closedLimit 记住的已结束会话 ID 数量上限
const closedLimit = 1024

// Store 会话缓存（单写者）
type Store struct {
	sessions map[string]*Session

	// closed 已被 Take 取出的会话 ID，迟到批次据此丢弃
	closed      map[string]struct{}
	closedOrder []string // FIFO，超过 closedLimit 时淘汰最早的 ID
	dropped     int
}

// New 创建会话缓存
func New() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		closed:   make(map[string]struct{}),
	}
}

// Append 追加一个批次的读数
// 参数 sessionID: 会话 ID，为空时忽略
// 参数 arrivedNs: 批次到达时间（纳秒）
// 参数 final: 是否为最后一批
// 返回: 会话是否已完整（收到最后一批）
// 已结束会话的迟到批次被丢弃并计入 Dropped，不会以同一 ID 重新打开会话。
func (s *Store) Append(sessionID string, arrivedNs int64, readings []model.SensorReading, final bool) bool {
	if sessionID == "" {
		return false
	}
	if s.Closed(sessionID) {
		s.dropped++
		return false
	}

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &Session{ID: sessionID, FirstArrivalNs: arrivedNs}
		s.sessions[sessionID] = sess
	}
	sess.Readings = append(sess.Readings, readings...)
	sess.Batches++
	sess.LastArrivalNs = arrivedNs
	sess.Final = sess.Final || final
	return sess.Final
}

// Get 获取会话，不存在时返回 nil；返回的指针应视为只读
func (s *Store) Get(sessionID string) *Session {
	return s.sessions[sessionID]
}

// Take 取出并移除会话，读数按时间戳稳定排序
// 批次可能乱序到达，排序后才能交给检测器。
func (s *Store) Take(sessionID string) (*Session, bool) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	delete(s.sessions, sessionID)
	s.markClosed(sessionID)
	ingest.SortByTimestamp(sess.Readings)
	return sess, true
}

// Closed 会话是否已结束（仍在记忆范围内）
func (s *Store) Closed(sessionID string) bool {
	_, ok := s.closed[sessionID]
	return ok
}

// Dropped 因会话已结束而丢弃的批次数
func (s *Store) Dropped() int {
	return s.dropped
}

func (s *Store) markClosed(sessionID string) {
	if _, ok := s.closed[sessionID]; ok {
		return
	}
	if len(s.closedOrder) >= closedLimit {
		oldest := s.closedOrder[0]
		s.closedOrder = s.closedOrder[1:]
		delete(s.closed, oldest)
	}
	s.closed[sessionID] = struct{}{}
	s.closedOrder = append(s.closedOrder, sessionID)
}

// Idle 返回空闲超过 idleNs 的会话 ID（按 ID 排序）
// 参数 nowNs: 当前时间（纳秒）
// 参数 idleNs: 空闲阈值（纳秒）
func (s *Store) Idle(nowNs, idleNs int64) []string {
	var ids []string
	for id, sess := range s.sessions {
		if nowNs-sess.LastArrivalNs > idleNs {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// IDs 全部会话 ID（按 ID 排序）
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len 缓存中的会话数
func (s *Store) Len() int {
	return len(s.sessions)
}
