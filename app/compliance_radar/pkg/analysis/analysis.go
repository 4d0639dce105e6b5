package analysis

import (
	"fmt"
	"sort"

	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/model"
)

// fieldOf 各汇总维度对应的字段
var fieldOf = map[model.Category]func(model.AlertRecord) string{
	model.CategoryAlertType:   func(r model.AlertRecord) string { return r.TypeOfAlert },
	model.CategoryStatus:      func(r model.AlertRecord) string { return r.Status },
	model.CategoryImpactLevel: func(r model.AlertRecord) string { return r.ImpactLevel },
}

// Aggregate 按告警类型、状态、影响级别统计数量和占比。
// 维度内按数量降序，数量相同时按首次出现的顺序。分母始终是 len(records)。
func Aggregate(records []model.AlertRecord) []model.AggregateRow {
	if len(records) == 0 {
		return nil
	}

	total := len(records)
	var rows []model.AggregateRow
	for _, cat := range model.Categories {
		for _, c := range countBy(records, fieldOf[cat]) {
			rows = append(rows, model.AggregateRow{
				Category:   cat,
				Item:       c.value,
				Count:      c.count,
				Percentage: FormatPercentage(c.count, total),
			})
		}
	}
	return rows
}

// FormatPercentage 保留一位小数，例如 "66.7%"
func FormatPercentage(count, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(count)/float64(total)*100)
}

type valueCount struct {
	value string
	count int
}

func countBy(records []model.AlertRecord, field func(model.AlertRecord) string) []valueCount {
	index := make(map[string]int)
	var counts []valueCount
	for _, r := range records {
		v := field(r)
		i, ok := index[v]
		if !ok {
			i = len(counts)
			index[v] = i
			counts = append(counts, valueCount{value: v})
		}
		counts[i].count++
	}
	// 稳定排序保证并列时保留首次出现的顺序
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].count > counts[j].count
	})
	return counts
}
