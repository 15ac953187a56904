// Package accuracy 实现验证运行的准确率统计。
// 每个单元（一个带标签会话）产生一个 Outcome；计算器以 O(1) 增量维护
// 总体、分类别与混淆矩阵统计。加载或检测失败的单元计入总数但不计正确。
package accuracy

import (
	"transit-direction-validator/internal/core/model"
)

// Outcome 单元检测结果
type Outcome struct {
	// Expected 标签方向
	Expected model.Direction
	// Predicted 检测方向（失败单元为 unknown）
	Predicted model.Direction
	// Confidence 置信度
	Confidence float64
	// Failed 单元是否加载/检测失败
	Failed bool
}

// Match 预测是否与标签一致（失败单元恒为 false）
func (o Outcome) Match() bool {
	return !o.Failed && o.Expected == o.Predicted
}

// ClassStats 单个类别的统计
type ClassStats struct {
	// Class 类别（标签方向）
	Class model.Direction `json:"class"`
	// Total 该类别单元数
	Total int `json:"total"`
	// Correct 正确数
	Correct int `json:"correct"`
	// Accuracy 准确率，Total 为 0 时为 0
	Accuracy float64 `json:"accuracy"`
}

// Stats 一次运行的统计快照
type Stats struct {
	// Total 单元总数（含失败）
	Total int `json:"total"`
	// Correct 正确数
	Correct int `json:"correct"`
	// Failed 失败单元数
	Failed int `json:"failed"`
	// Accuracy 总体准确率 Correct/Total
	Accuracy float64 `json:"accuracy"`
	// MeanConfidence 非失败单元的平均置信度
	MeanConfidence float64 `json:"mean_confidence"`
	// MeanCorrectConfidence 正确单元的平均置信度
	MeanCorrectConfidence float64 `json:"mean_correct_confidence"`
	// PerClass 分类别统计，顺序同 model.Directions
	PerClass []ClassStats `json:"per_class"`
	// Confusion 混淆矩阵 [标签][预测]，下标为 Direction.Index()，不含失败单元
	Confusion [3][3]int `json:"confusion"`
}

// Calculator 准确率计算器
type Calculator struct {
	total   int
	correct int
	failed  int

	sumConf        float64
	sumCorrectConf float64

	classTotal   [3]int
	classCorrect [3]int
	confusion    [3][3]int
}

// NewCalculator 创建准确率计算器
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Add 添加一个单元结果
func (c *Calculator) Add(o Outcome) {
	c.total++
	ei := o.Expected.Index()
	c.classTotal[ei]++

	if o.Failed {
		c.failed++
		return
	}

	c.sumConf += o.Confidence
	c.confusion[ei][o.Predicted.Index()]++
	if o.Match() {
		c.correct++
		c.classCorrect[ei]++
		c.sumCorrectConf += o.Confidence
	}
}

// Stats 返回统计快照
func (c *Calculator) Stats() Stats {
	out := Stats{
		Total:     c.total,
		Correct:   c.correct,
		Failed:    c.failed,
		Confusion: c.confusion,
		PerClass:  make([]ClassStats, 0, len(model.Directions)),
	}

	for _, d := range model.Directions {
		i := d.Index()
		cs := ClassStats{Class: d, Total: c.classTotal[i], Correct: c.classCorrect[i]}
		if cs.Total > 0 {
			cs.Accuracy = float64(cs.Correct) / float64(cs.Total)
		}
		out.PerClass = append(out.PerClass, cs)
	}

	if c.total > 0 {
		out.Accuracy = float64(c.correct) / float64(c.total)
	}
	if evaluated := c.total - c.failed; evaluated > 0 {
		out.MeanConfidence = c.sumConf / float64(evaluated)
	}
	if c.correct > 0 {
		out.MeanCorrectConfidence = c.sumCorrectConf / float64(c.correct)
	}
	return out
}

// Class 返回指定类别的统计
func (s Stats) Class(d model.Direction) ClassStats {
	for _, cs := range s.PerClass {
		if cs.Class == d {
			return cs
		}
	}
	return ClassStats{Class: d}
}

// MeetsTarget 总体准确率是否达到目标
// 没有任何单元时视为未达标。
func MeetsTarget(stats Stats, target float64) bool {
	return stats.Total > 0 && stats.Accuracy >= target
}
