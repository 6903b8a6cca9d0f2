package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"support-lab/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// 工单历史一次最多拉取的条数
	TicketListLimit = 100
	// 默认按创建时间倒序
	SortNewestFirst = "-created_at"
)

// TicketStore 工单记录存储：create/update/get/list
type TicketStore interface {
	Create(ctx context.Context, ticket *model.SupportTicket) error
	Update(ctx context.Context, id uint, fields map[string]interface{}) (*model.SupportTicket, error)
	Get(ctx context.Context, id uint) (*model.SupportTicket, error)
	List(ctx context.Context, sort string, limit int) ([]model.SupportTicket, error)
}

type GormTicketStore struct {
	db *gorm.DB
}

func NewGormTicketStore(conn *gorm.DB) *GormTicketStore {
	return &GormTicketStore{db: conn}
}

func (s *GormTicketStore) Create(ctx context.Context, ticket *model.SupportTicket) error {
	if err := s.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return fmt.Errorf("保存工单失败: %w", err)
	}
	return nil
}

func (s *GormTicketStore) Update(ctx context.Context, id uint, fields map[string]interface{}) (*model.SupportTicket, error) {
	res := s.db.WithContext(ctx).Model(&model.SupportTicket{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, fmt.Errorf("更新工单失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("更新工单失败: id=%d: %w", id, gorm.ErrRecordNotFound)
	}
	return s.Get(ctx, id)
}

func (s *GormTicketStore) Get(ctx context.Context, id uint) (*model.SupportTicket, error) {
	var ticket model.SupportTicket
	if err := s.db.WithContext(ctx).First(&ticket, id).Error; err != nil {
		return nil, fmt.Errorf("获取工单失败: id=%d: %w", id, err)
	}
	return &ticket, nil
}

func (s *GormTicketStore) List(ctx context.Context, sort string, limit int) ([]model.SupportTicket, error) {
	q, err := applySortAndLimit(s.db.WithContext(ctx).Model(&model.SupportTicket{}), sort, limit)
	if err != nil {
		return nil, err
	}
	tickets := []model.SupportTicket{}
	if err := q.Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("查询工单失败: %w", err)
	}
	return tickets, nil
}

var ErrInvalidSort = errors.New("非法排序字段")

var sortColumnRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// parseSortSpec "-created_at" -> created_at DESC；只允许普通列名
func parseSortSpec(sort string) (clause.OrderByColumn, error) {
	s := strings.TrimSpace(sort)
	desc := false
	if strings.HasPrefix(s, "-") {
		desc = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if !sortColumnRe.MatchString(s) {
		return clause.OrderByColumn{}, fmt.Errorf("%w: %q", ErrInvalidSort, sort)
	}
	return clause.OrderByColumn{Column: clause.Column{Name: s}, Desc: desc}, nil
}

func applySortAndLimit(q *gorm.DB, sort string, limit int) (*gorm.DB, error) {
	if sort != "" {
		order, err := parseSortSpec(sort)
		if err != nil {
			return nil, err
		}
		q = q.Order(order)
		// 同一时间戳下按 id 保持稳定顺序
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: order.Desc})
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q, nil
}
