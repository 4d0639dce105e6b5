package export

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/model"
)

// ErrWrite 输出文件写入失败，本次运行终止，已写出的文件不回滚
var ErrWrite = errors.New("export write failed")

// Separator 字段分隔符
const Separator = ';'

// DataColumns 明细文件的列顺序
var DataColumns = []string{
	"alert_id", "type_of_alert", "status", "assigned_to",
	"creation_date", "resolution_date", "impact_level",
	"priority", "source", "description",
}

// AnalysisColumns 汇总文件的列
var AnalysisColumns = []string{"Categoria", "Item", "Quantidade", "Percentual"}

// DefaultLabels 汇总维度在报表中的名称
var DefaultLabels = map[model.Category]string{
	model.CategoryAlertType:   "Tipo de Alerta",
	model.CategoryStatus:      "Status",
	model.CategoryImpactLevel: "Nível de Impacto",
}

// Exporter 写出明细和汇总两份 CSV
type Exporter struct {
	baseName string
	labels   map[model.Category]string
	now      func() time.Time
}

// NewExporter 创建导出器；overrides 以维度名（alert-type/status/impact-level）为键覆盖默认名称
func NewExporter(baseName string, overrides map[string]string) *Exporter {
	labels := make(map[model.Category]string, len(DefaultLabels))
	for k, v := range DefaultLabels {
		labels[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			labels[model.Category(k)] = v
		}
	}
	return &Exporter{baseName: baseName, labels: labels, now: time.Now}
}

// WithClock 替换时钟，返回自身
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	e.now = now
	return e
}

// DailyDir 当天的输出目录：baseDir/Compliance YYYYMMDD
func DailyDir(baseDir string, t time.Time) string {
	return filepath.Join(baseDir, "Compliance "+t.Format("20060102"))
}

// Export 按当前时间写出两份文件，见 ExportAt
func (e *Exporter) Export(records []model.AlertRecord, rows []model.AggregateRow, outputDir string) (string, string, error) {
	return e.ExportAt(records, rows, outputDir, e.now())
}

// ExportAt 写出两份文件并返回路径，文件名时间戳取自 at。outputDir 不存在时创建。
// 先写明细再写汇总；汇总失败时明细文件保留。
func (e *Exporter) ExportAt(records []model.AlertRecord, rows []model.AggregateRow, outputDir string, at time.Time) (string, string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", "", fmt.Errorf("%w: create output dir %s: %v", ErrWrite, outputDir, err)
	}

	stamp := at.Format("20060102_150405")
	dataPath := filepath.Join(outputDir, fmt.Sprintf("%s_dados_%s.csv", e.baseName, stamp))
	analysisPath := filepath.Join(outputDir, fmt.Sprintf("%s_analise_%s.csv", e.baseName, stamp))

	if err := writeFile(dataPath, dataTable(records)); err != nil {
		return "", "", err
	}
	if err := writeFile(analysisPath, e.analysisTable(rows)); err != nil {
		return dataPath, "", err
	}
	return dataPath, analysisPath, nil
}

// cell 单元格；Quoted 为 false 时按原样写出（数字、空值）
type cell struct {
	Value  string
	Quoted bool
}

func text(s string) cell { return cell{Value: s, Quoted: true} }

func number(n int) cell { return cell{Value: strconv.Itoa(n)} }

func header(cols []string) []cell {
	out := make([]cell, len(cols))
	for i, c := range cols {
		out[i] = text(c)
	}
	return out
}

func dataTable(records []model.AlertRecord) [][]cell {
	table := [][]cell{header(DataColumns)}
	for _, r := range records {
		resolution := cell{}
		if r.ResolutionDate != nil {
			resolution = text(model.FormatDate(*r.ResolutionDate))
		}
		table = append(table, []cell{
			text(r.AlertID),
			text(r.TypeOfAlert),
			text(r.Status),
			text(r.AssignedTo),
			text(model.FormatDate(r.CreationDate)),
			resolution,
			text(r.ImpactLevel),
			number(r.Priority),
			text(r.Source),
			text(r.Description),
		})
	}
	return table
}

func (e *Exporter) analysisTable(rows []model.AggregateRow) [][]cell {
	table := [][]cell{header(AnalysisColumns)}
	for _, r := range rows {
		label, ok := e.labels[r.Category]
		if !ok {
			label = string(r.Category)
		}
		table = append(table, []cell{
			text(label),
			text(r.Item),
			number(r.Count),
			text(r.Percentage),
		})
	}
	return table
}

// writeFile 以带 BOM 的 UTF-8 写出
func writeFile(path string, table [][]cell) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	tw := transform.NewWriter(f, unicode.UTF8BOM.NewEncoder())
	bw := bufio.NewWriter(tw)
	for _, row := range table {
		if _, err := bw.WriteString(formatRow(row)); err != nil {
			f.Close()
			return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	if err := tw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	return nil
}

func formatRow(row []cell) string {
	var sb strings.Builder
	for i, c := range row {
		if i > 0 {
			sb.WriteByte(Separator)
		}
		if c.Quoted {
			sb.WriteByte('"')
			sb.WriteString(strings.ReplaceAll(c.Value, `"`, `""`))
			sb.WriteByte('"')
		} else {
			sb.WriteString(c.Value)
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}
