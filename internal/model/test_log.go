package model

import (
	"time"
)

// TestLog 各测试页的执行记录（只追加，偶尔改名/删除）
type TestLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TestCategory string `gorm:"type:varchar(100);not null;index" json:"test_category"`
	TestName     string `gorm:"type:varchar(255);not null;index" json:"test_name"`
	// passed / failed
	Status     string `gorm:"type:varchar(20);not null;index" json:"status"`
	ResultData string `gorm:"type:longtext" json:"result_data"`
	// 毫秒
	ExecutionTime int64 `json:"execution_time"`
}

// SapienceTest 一次“意识测试”的问答与人工评分
type SapienceTest struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TestType   string `gorm:"type:varchar(50);not null;index" json:"test_type"`
	UserInput  string `gorm:"type:text;not null" json:"user_input"`
	AIResponse string `gorm:"column:ai_response;type:longtext" json:"ai_response"`
	// 毫秒
	ResponseTime int64  `json:"response_time"`
	Passed       bool   `json:"passed"`
	UserRating   int    `json:"user_rating"`
	Notes        string `gorm:"type:text" json:"notes"`
}
