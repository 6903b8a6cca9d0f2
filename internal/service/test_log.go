package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"support-lab/internal/model"

	"gorm.io/gorm"
)

const (
	TestStatusPassed = "passed"
	TestStatusFailed = "failed"
)

type TestLogService struct {
	db *gorm.DB
}

func NewTestLogService(conn *gorm.DB) *TestLogService {
	return &TestLogService{db: conn}
}

type TestLogFilter struct {
	Category string
	Status   string
	TestName string
}

type TestLogUpdate struct {
	TestName *string `json:"test_name"`
	Status   *string `json:"status" validate:"omitempty,oneof=passed failed"`
}

type DashboardSummary struct {
	Recent      []model.TestLog `json:"recent"`
	PassedTests int             `json:"passed_tests"`
	TotalTests  int             `json:"total_tests"`
}

func (s *TestLogService) Create(ctx context.Context, log *model.TestLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("保存测试记录失败: %w", err)
	}
	return nil
}

// BulkCreate 一次插入多条，失败则整体回滚
func (s *TestLogService) BulkCreate(ctx context.Context, logs []model.TestLog) ([]model.TestLog, error) {
	if len(logs) == 0 {
		return []model.TestLog{}, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&logs).Error
	})
	if err != nil {
		return nil, fmt.Errorf("批量保存测试记录失败: %w", err)
	}
	return logs, nil
}

func (s *TestLogService) List(ctx context.Context, sort string, limit int) ([]model.TestLog, error) {
	return s.Filter(ctx, TestLogFilter{}, sort, limit)
}

// Filter 字段精确匹配 + 排序 + 条数限制
func (s *TestLogService) Filter(ctx context.Context, f TestLogFilter, sort string, limit int) ([]model.TestLog, error) {
	q := s.db.WithContext(ctx).Model(&model.TestLog{})
	if f.Category != "" {
		q = q.Where("test_category = ?", f.Category)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.TestName != "" {
		q = q.Where("test_name = ?", f.TestName)
	}
	q, err := applySortAndLimit(q, sort, limit)
	if err != nil {
		return nil, err
	}

	logs := []model.TestLog{}
	if err := q.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("查询测试记录失败: %w", err)
	}
	return logs, nil
}

func (s *TestLogService) Update(ctx context.Context, id uint, upd TestLogUpdate) (*model.TestLog, error) {
	if err := validateStruct(upd); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if upd.TestName != nil {
		fields["test_name"] = *upd.TestName
	}
	if upd.Status != nil {
		fields["status"] = *upd.Status
	}

	var log model.TestLog
	if err := s.db.WithContext(ctx).First(&log, id).Error; err != nil {
		return nil, fmt.Errorf("获取测试记录失败: id=%d: %w", id, err)
	}
	if len(fields) == 0 {
		return &log, nil
	}
	if err := s.db.WithContext(ctx).Model(&log).Updates(fields).Error; err != nil {
		return nil, fmt.Errorf("更新测试记录失败: %w", err)
	}
	var updated model.TestLog
	if err := s.db.WithContext(ctx).First(&updated, id).Error; err != nil {
		return nil, fmt.Errorf("获取测试记录失败: id=%d: %w", id, err)
	}
	return &updated, nil
}

func (s *TestLogService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.TestLog{}, id)
	if res.Error != nil {
		return fmt.Errorf("删除测试记录失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("删除测试记录失败: id=%d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// Summary 首页：最近 5 条及其中通过数
func (s *TestLogService) Summary(ctx context.Context) (*DashboardSummary, error) {
	recent, err := s.List(ctx, SortNewestFirst, 5)
	if err != nil {
		return nil, err
	}
	passed := 0
	for _, l := range recent {
		if l.Status == TestStatusPassed {
			passed++
		}
	}
	return &DashboardSummary{Recent: recent, PassedTests: passed, TotalTests: len(recent)}, nil
}

// Record 执行一次测试动作，计时并写入 TestLog；返回动作本身的结果
func (s *TestLogService) Record(ctx context.Context, category, name string, fn func(ctx context.Context) (any, error)) (any, *model.TestLog, error) {
	start := time.Now()
	result, runErr := fn(ctx)
	elapsed := time.Since(start).Milliseconds()

	entry := &model.TestLog{
		TestCategory:  category,
		TestName:      name,
		Status:        TestStatusPassed,
		ExecutionTime: elapsed,
	}
	if runErr != nil {
		entry.Status = TestStatusFailed
		entry.ResultData = mustJSON(map[string]string{"error": runErr.Error()})
	} else {
		entry.ResultData = mustJSON(result)
	}

	if err := s.Create(ctx, entry); err != nil {
		if runErr != nil {
			return nil, nil, runErr
		}
		return result, nil, err
	}
	return result, entry, runErr
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}
	return string(b)
}
