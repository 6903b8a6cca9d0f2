package service

import (
	"context"
	"strings"

	"support-lab/internal/model"
)

// FilterAll 筛选项的哨兵值，表示不过滤
const FilterAll = "all"

type TicketFilter struct {
	Search    string
	Status    string
	ErrorType string
}

// TicketDetail 详情视图：附带解析后的 solutions 与截图列表
type TicketDetail struct {
	model.SupportTicket
	ParsedSolutions []Solution `json:"parsed_solutions"`
	ImageURLList    []string   `json:"image_url_list"`
}

// ListTickets 最新在前，最多 100 条；优先读快照
func (s *SupportService) ListTickets(ctx context.Context) ([]model.SupportTicket, error) {
	tickets, gen, ok, cerr := s.cache.Get(ctx)
	if cerr != nil {
		s.log.Warn("读取工单缓存失败，回源数据库", "error", cerr)
	} else if ok {
		return tickets, nil
	}

	tickets, err := s.store.List(ctx, SortNewestFirst, TicketListLimit)
	if err != nil {
		return nil, err
	}
	// 拿不到代号时不回写
	if cerr == nil {
		if err := s.cache.Set(ctx, gen, tickets); err != nil {
			s.log.Warn("写入工单缓存失败", "error", err)
		}
	}
	return tickets, nil
}

// Refresh 显式丢弃列表快照，下次 ListTickets 回源
func (s *SupportService) Refresh(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

func (s *SupportService) GetTicketDetail(ctx context.Context, id uint) (*TicketDetail, error) {
	ticket, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TicketDetail{
		SupportTicket:   *ticket,
		ParsedSolutions: ParseSolutions(ticket.Solutions),
		ImageURLList:    SplitImageURLs(ticket.ImageURLs),
	}, nil
}

// FilterTickets 纯函数：文本/状态/错误类型三者取交集，保持输入顺序
func FilterTickets(tickets []model.SupportTicket, f TicketFilter) []model.SupportTicket {
	term := strings.ToLower(f.Search)
	out := make([]model.SupportTicket, 0, len(tickets))
	for _, t := range tickets {
		if !matchesSearch(t, term) {
			continue
		}
		if !matchesFacet(string(t.Status), f.Status) {
			continue
		}
		if !matchesFacet(string(t.ErrorType), f.ErrorType) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesSearch(t model.SupportTicket, term string) bool {
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(t.AppName), term) {
		return true
	}
	if strings.Contains(strings.ToLower(t.ProblemDescription), term) {
		return true
	}
	return t.PageName != "" && strings.Contains(strings.ToLower(t.PageName), term)
}

func matchesFacet(value, want string) bool {
	return want == "" || want == FilterAll || value == want
}

func SplitImageURLs(joined string) []string {
	out := []string{}
	for _, u := range strings.Split(joined, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
