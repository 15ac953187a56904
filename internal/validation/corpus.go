// Package validation 在标注语料上运行检测策略与参数档位的交叉组合，
// 统计每个组合的分类别与总体准确率，并选出最佳组合。
package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"transit-direction-validator/internal/core/model"
	"transit-direction-validator/internal/ingest"
)

// ErrDataDirMissing 语料目录不存在
var ErrDataDirMissing = errors.New("语料目录不存在")

// labelPrefixes 文件名前缀到标签的映射，按匹配顺序排列
var labelPrefixes = []struct {
	prefix string
	dir    model.Direction
}{
	{"a_to_b", model.DirectionAToB},
	{"b_to_a", model.DirectionBToA},
	{"baseline", model.DirectionUnknown},
	{"no_transit", model.DirectionUnknown},
}

// LabelFromName 从文件名或目录名前缀解析标签
// 返回: 标签方向与是否识别
func LabelFromName(name string) (model.Direction, bool) {
	lower := strings.ToLower(name)
	for _, p := range labelPrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return p.dir, true
		}
	}
	return model.DirectionUnknown, false
}

// Unit 语料中的一个带标签会话
type Unit struct {
	// Name 单元标识（相对语料目录的路径）
	Name string
	// Path 文件路径
	Path string
	// Expected 标签方向
	Expected model.Direction
	// Session 加载后的会话，Err 非空时为零值
	Session ingest.Session
	// Err 加载失败原因
	Err error
}

// Corpus 标注语料
type Corpus struct {
	// Dir 语料目录
	Dir string
	// Units 按名称排序的单元
	Units []Unit
	// Skipped 无法识别标签而跳过的文件
	Skipped []string
}

// LoadCorpus 加载语料目录
// 顶层文件按文件名前缀取标签；子目录（如下载工具按类别组织的 a_to_b/、no_transit/）
// 中的文件优先用文件名前缀，否则使用子目录名。单个文件加载失败记录在 Unit.Err，不中断加载。
// 参数 dir: 语料目录
// 返回: 语料；目录不存在时返回 ErrDataDirMissing
func LoadCorpus(dir string) (*Corpus, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDataDirMissing, dir)
		}
		return nil, fmt.Errorf("读取语料目录失败: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s 不是目录", ErrDataDirMissing, dir)
	}

	corpus := &Corpus{Dir: dir}
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !ingest.IsSessionFile(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = d.Name()
		}
		rel = filepath.ToSlash(rel)

		label, ok := LabelFromName(d.Name())
		if !ok {
			if parent := filepath.Base(filepath.Dir(path)); filepath.Dir(path) != filepath.Clean(dir) {
				label, ok = LabelFromName(parent)
			}
		}
		if !ok {
			corpus.Skipped = append(corpus.Skipped, rel)
			return nil
		}

		unit := Unit{Name: rel, Path: path, Expected: label}
		unit.Session, unit.Err = ingest.LoadFile(path)
		corpus.Units = append(corpus.Units, unit)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历语料目录失败: %w", err)
	}

	sort.Slice(corpus.Units, func(i, j int) bool { return corpus.Units[i].Name < corpus.Units[j].Name })
	sort.Strings(corpus.Skipped)
	return corpus, nil
}

// CountByClass 各类别单元数，顺序同 model.Directions
func (c *Corpus) CountByClass() map[model.Direction]int {
	out := make(map[model.Direction]int, len(model.Directions))
	for _, u := range c.Units {
		out[u.Expected]++
	}
	return out
}
