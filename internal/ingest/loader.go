package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"transit-direction-validator/internal/util/fastparse"
)

// csvColumns 必需列
var csvColumns = []string{"timestamp_offset", "pcb_id", "side", "proximity"}

// ReadCSV 解析 CSV 会话导出
// 表头列顺序任意，多余列忽略。
func ReadCSV(r io.Reader) ([]RawReading, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: 空文件", ErrMissingColumn)
		}
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range csvColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var rows []RawReading
	for row := 0; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取第 %d 行失败: %w", row, err)
		}

		var raw RawReading
		for _, col := range csvColumns {
			i := index[col]
			if i >= len(record) || strings.TrimSpace(record[i]) == "" {
				continue
			}
			v, err := fastparse.ParseInt(record[i])
			if err != nil {
				return nil, &RowError{Row: row, Field: col, Reason: fmt.Sprintf("无法解析 %q", record[i])}
			}
			switch col {
			case "timestamp_offset":
				raw.TimestampMs = &v
			case "pcb_id":
				id := int(v)
				raw.ModuleID = &id
			case "side":
				side := int(v)
				raw.Side = &side
			case "proximity":
				raw.Proximity = &v
			}
		}
		rows = append(rows, raw)
	}
	return rows, nil
}

// sessionFile 会话 JSON 文件结构
type sessionFile struct {
	Session struct {
		SessionID string `json:"session_id"`
	} `json:"session"`
	Readings []RawReading `json:"readings"`
}

// ReadSessionJSON 解析会话 JSON
// 返回: 会话 ID（可能为空）与原始读数
func ReadSessionJSON(r io.Reader) (string, []RawReading, error) {
	var f sessionFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return "", nil, fmt.Errorf("解析会话 JSON 失败: %w", err)
	}
	return f.Session.SessionID, f.Readings, nil
}

// LoadFile 按扩展名加载会话文件并校验
// 参数 path: .csv 或 .json 文件路径
// 返回: 规范化后的会话；会话 ID 缺省为不含扩展名的文件名
func LoadFile(path string) (Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return Session{}, fmt.Errorf("打开会话文件失败: %w", err)
	}
	defer f.Close()

	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	session := Session{ID: strings.TrimSuffix(base, filepath.Ext(base))}

	var raw []RawReading
	switch ext {
	case ".csv":
		raw, err = ReadCSV(f)
	case ".json":
		var id string
		id, raw, err = ReadSessionJSON(f)
		if id != "" {
			session.ID = id
		}
	default:
		return Session{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", base, err)
	}

	session.Readings, err = Normalize(raw)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", base, err)
	}
	return session, nil
}

// IsSessionFile 是否为可加载的会话文件扩展名
func IsSessionFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".json":
		return true
	}
	return false
}
