// Package jsonl 实现异步 JSONL 记录写入。
// Write 只把记录投递到带缓冲的 channel，JSON 编码与文件 I/O 在后台 goroutine 完成，
// 实时监控的读循环因此不会被磁盘阻塞。
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// ErrClosed 写入器已关闭
var ErrClosed = errors.New("writer 已关闭")

type opType int

const (
	opWrite opType = iota
	opFlush
	opClose
)

type op struct {
	typ  opType
	val  any
	done chan error
}

// Writer 异步 JSONL 写入器
type Writer struct {
	path string
	ch   chan op

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool

	// sendMu 保证 Close 之后不再向 ch 发送
	sendMu sync.Mutex

	written atomic.Int64
	failed  atomic.Int64

	wg sync.WaitGroup
}

// NewWriter 创建 JSONL 写入器（追加模式）
// 参数 path: 输出文件路径，父目录不存在时自动创建
// 参数 bufferSize: channel 容量，<=0 时使用 1000
func NewWriter(path string, bufferSize int) (*Writer, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &Writer{
		path: path,
		ch:   make(chan op, bufferSize),
	}

	w.wg.Add(1)
	go w.loop(f)

	return w, nil
}

// Path 输出文件路径
func (w *Writer) Path() string {
	return w.path
}

// Write 异步写入一条记录
func (w *Writer) Write(v any) error {
	if w == nil {
		return fmt.Errorf("writer 为空")
	}
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.closed.Load() {
		return ErrClosed
	}
	w.ch <- op{typ: opWrite, val: v}
	return nil
}

// Flush 等待已投递记录写入文件
func (w *Writer) Flush() error {
	if w == nil {
		return nil
	}
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.closed.Load() {
		return nil
	}
	done := make(chan error, 1)
	w.ch <- op{typ: opFlush, done: done}
	return <-done
}

// Close 写完剩余记录后关闭文件（可重复调用）
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		w.sendMu.Lock()
		defer w.sendMu.Unlock()
		w.closed.Store(true)
		done := make(chan error, 1)
		w.ch <- op{typ: opClose, done: done}
		w.closeErr = <-done
		close(w.ch)
	})
	w.wg.Wait()
	return w.closeErr
}

// Written 已成功写入的记录数
func (w *Writer) Written() int64 {
	return w.written.Load()
}

// Failed 编码或写入失败的记录数
func (w *Writer) Failed() int64 {
	return w.failed.Load()
}

func (w *Writer) loop(f *os.File) {
	defer w.wg.Done()
	defer f.Close()

	bw := bufio.NewWriterSize(f, 1<<16)
	enc := json.NewEncoder(bw)

	for req := range w.ch {
		switch req.typ {
		case opWrite:
			// Encoder 在每条记录后追加换行
			if err := enc.Encode(req.val); err != nil {
				w.failed.Add(1)
				continue
			}
			w.written.Add(1)
		case opFlush:
			req.done <- bw.Flush()
		case opClose:
			req.done <- bw.Flush()
			return
		}
	}
}
