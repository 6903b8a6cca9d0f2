package model

import (
	"time"
)

// TicketStatus 工单生命周期：analyzing -> solved
type TicketStatus string

const (
	StatusAnalyzing TicketStatus = "analyzing"
	StatusSolved    TicketStatus = "solved"
	// needs_more_info 只出现在筛选项里，目前没有任何流程会写入
	StatusNeedsMoreInfo TicketStatus = "needs_more_info"
)

var validStatuses = map[TicketStatus]bool{
	StatusAnalyzing:     true,
	StatusSolved:        true,
	StatusNeedsMoreInfo: true,
}

func (s TicketStatus) IsValid() bool {
	return validStatuses[s]
}

type ErrorType string

const (
	ErrorTypeRuntime     ErrorType = "runtime_error"
	ErrorTypeBuild       ErrorType = "build_error"
	ErrorTypeUI          ErrorType = "ui_issue"
	ErrorTypeDatabase    ErrorType = "database_error"
	ErrorTypeIntegration ErrorType = "integration_error"
	ErrorTypePerformance ErrorType = "performance"
	ErrorTypeOther       ErrorType = "other"
)

var validErrorTypes = map[ErrorType]bool{
	ErrorTypeRuntime:     true,
	ErrorTypeBuild:       true,
	ErrorTypeUI:          true,
	ErrorTypeDatabase:    true,
	ErrorTypeIntegration: true,
	ErrorTypePerformance: true,
	ErrorTypeOther:       true,
}

func (e ErrorType) IsValid() bool {
	return validErrorTypes[e]
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var validPriorities = map[Priority]bool{
	PriorityLow:      true,
	PriorityMedium:   true,
	PriorityHigh:     true,
	PriorityCritical: true,
}

func (p Priority) IsValid() bool {
	return validPriorities[p]
}

// SupportTicket 用户提交的问题报告 + AI 分析结果
type SupportTicket struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 输入字段：创建后不再修改
	AppName            string    `gorm:"type:varchar(200);not null;index" json:"app_name"`
	PageName           string    `gorm:"type:varchar(200)" json:"page_name"`
	ProblemDescription string    `gorm:"type:text;not null" json:"problem_description"`
	ExpectedBehavior   string    `gorm:"type:text" json:"expected_behavior"`
	CodeSnippet        string    `gorm:"type:longtext" json:"code_snippet"`
	ChatHistory        string    `gorm:"type:longtext" json:"chat_history"`
	ImageURLs          string    `gorm:"column:image_urls;type:text" json:"image_urls"`
	ErrorType          ErrorType `gorm:"type:varchar(40);not null;index" json:"error_type"`
	Priority           Priority  `gorm:"type:varchar(20);not null;default:medium" json:"priority"`

	Status TicketStatus `gorm:"type:varchar(30);not null;index" json:"status"`

	// 输出字段：仅在 status=solved 时有值
	AnalysisResult string `gorm:"type:text" json:"analysis_result"`
	// solutions 以 JSON 文本保存
	Solutions string `gorm:"type:longtext" json:"solutions"`
}
