package model

import "time"

// 告警状态
const (
	StatusOpen            = "Aberto"
	StatusInReview        = "Em Análise"
	StatusPendingApproval = "Pendente Aprovação"
	StatusResolved        = "Resolvido"
	StatusClosed          = "Fechado"
	StatusReopened        = "Reaberto"
	StatusEscalated       = "Escalado para Fiscal"
)

// 影响级别
const (
	ImpactLow      = "Baixo"
	ImpactModerate = "Moderado"
	ImpactHigh     = "Alto"
	ImpactCritical = "Crítico"
)

// AlertTypes 告警类型枚举
var AlertTypes = []string{
	"Fatura Duplicada",
	"Fornecedor Não Aprovado",
	"Valor Inconsistente",
	"Data de Emissão Inválida",
	"Taxa Calculada Incorretamente",
	"Nota Fiscal Inexistente",
	"Alteração Não Autorizada",
	"Classificação Fiscal Incorreta",
}

// Statuses 告警状态枚举
var Statuses = []string{
	StatusOpen,
	StatusInReview,
	StatusPendingApproval,
	StatusResolved,
	StatusClosed,
	StatusReopened,
	StatusEscalated,
}

// ImpactLevels 影响级别枚举
var ImpactLevels = []string{
	ImpactLow,
	ImpactModerate,
	ImpactHigh,
	ImpactCritical,
}

// IsTerminalStatus 终态（已解决/已关闭）才会有 resolution_date
func IsTerminalStatus(status string) bool {
	return status == StatusResolved || status == StatusClosed
}

// AlertRecord 单条合规告警
type AlertRecord struct {
	AlertID        string
	TypeOfAlert    string
	Status         string
	AssignedTo     string
	CreationDate   time.Time
	ResolutionDate *time.Time // 仅终态存在
	ImpactLevel    string
	Description    string
	Source         string
	Priority       int // 1-5
}

// Category 汇总维度
type Category string

const (
	CategoryAlertType   Category = "alert-type"
	CategoryStatus      Category = "status"
	CategoryImpactLevel Category = "impact-level"
)

// Categories 汇总维度的固定输出顺序
var Categories = []Category{CategoryAlertType, CategoryStatus, CategoryImpactLevel}

// AggregateRow 汇总表的一行
type AggregateRow struct {
	Category   Category
	Item       string
	Count      int
	Percentage string // 例如 "66.7%"
}

// 运行状态
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunSummary 历史运行记录
type RunSummary struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string
	Error        string // 仅 failed 时非空
	Requested    int
	Collected    int
	DataPath     string
	AnalysisPath string
}

// FormatDate 日期格式化为 YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.Local)
}

// DateOf 截断到当天零点
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
