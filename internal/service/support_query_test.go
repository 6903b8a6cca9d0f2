package service

import (
	"context"
	"testing"

	"support-lab/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func sampleTickets() []model.SupportTicket {
	return []model.SupportTicket{
		{ID: 5, AppName: "Acme CRM", ProblemDescription: "Submit button does nothing", ErrorType: model.ErrorTypeUI, Status: model.StatusSolved},
		{ID: 4, AppName: "Shop", PageName: "crm-sync", ProblemDescription: "Sync fails", ErrorType: model.ErrorTypeIntegration, Status: model.StatusSolved},
		{ID: 3, AppName: "Blog", ProblemDescription: "Import from CRM hangs", ErrorType: model.ErrorTypePerformance, Status: model.StatusAnalyzing},
		{ID: 2, AppName: "Notes", ProblemDescription: "Build breaks", ErrorType: model.ErrorTypeBuild, Status: model.StatusSolved},
		{ID: 1, AppName: "crm lite", ProblemDescription: "Crash on load", ErrorType: model.ErrorTypeRuntime, Status: model.StatusNeedsMoreInfo},
	}
}

func ticketIDs(tickets []model.SupportTicket) []uint {
	ids := make([]uint, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestFilterTickets(t *testing.T) {
	tickets := sampleTickets()

	tests := []struct {
		name   string
		filter TicketFilter
		want   []uint
	}{
		{"no filter", TicketFilter{Search: "", Status: FilterAll, ErrorType: FilterAll}, []uint{5, 4, 3, 2, 1}},
		{"empty facets behave like all", TicketFilter{}, []uint{5, 4, 3, 2, 1}},
		{"crm solved", TicketFilter{Search: "crm", Status: string(model.StatusSolved), ErrorType: FilterAll}, []uint{5, 4}},
		{"search is case-insensitive", TicketFilter{Search: "CRM"}, []uint{5, 4, 3, 1}},
		{"error type only", TicketFilter{ErrorType: string(model.ErrorTypeBuild)}, []uint{2}},
		{"needs_more_info facet", TicketFilter{Status: string(model.StatusNeedsMoreInfo)}, []uint{1}},
		{"no match", TicketFilter{Search: "zzz"}, []uint{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterTickets(tickets, tt.filter)
			assert.Equal(t, tt.want, ticketIDs(got))

			// 再过滤一次结果不变
			assert.Equal(t, got, FilterTickets(got, tt.filter))
		})
	}

	assert.Equal(t, sampleTickets(), tickets, "input must not be modified")
}

func TestFilterTickets_EmptyPageNameDoesNotMatch(t *testing.T) {
	tickets := []model.SupportTicket{{ID: 1, AppName: "A", ProblemDescription: "B"}}
	assert.Empty(t, FilterTickets(tickets, TicketFilter{Search: " "}))
}

func TestListTickets_CacheAndRefresh(t *testing.T) {
	f := newSupportFixture(t)
	ctx := context.Background()

	first := &model.SupportTicket{AppName: "Acme CRM", ProblemDescription: "x", ErrorType: model.ErrorTypeUI, Priority: model.PriorityLow, Status: model.StatusAnalyzing}
	require.NoError(t, f.store.Create(ctx, first))

	tickets, err := f.svc.ListTickets(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, 1, f.log.count("list"))

	second := &model.SupportTicket{AppName: "Shop", ProblemDescription: "y", ErrorType: model.ErrorTypeOther, Priority: model.PriorityLow, Status: model.StatusAnalyzing}
	require.NoError(t, f.store.Create(ctx, second))

	// 未 Refresh 之前读的是快照
	tickets, err = f.svc.ListTickets(ctx)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
	assert.Equal(t, 1, f.log.count("list"))

	require.NoError(t, f.svc.Refresh(ctx))
	tickets, err = f.svc.ListTickets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{second.ID, first.ID}, ticketIDs(tickets))
	assert.Equal(t, 2, f.log.count("list"))
}

func TestListTickets_RefreshDuringLoad(t *testing.T) {
	conn := setupTestDB(t)
	store := &submitDuringListStore{TicketStore: NewGormTicketStore(conn)}
	gateway := &fakeGateway{result: jsonResult(`{"analysis":"ok","solutions":[]}`)}
	svc := NewSupportService(store, gateway, NewMemoryTicketCache(0))
	store.onList = func(ctx context.Context) {
		_, err := svc.SubmitAndAnalyze(ctx, SupportRequest{AppName: "Acme CRM", ProblemDescription: "x", ErrorType: model.ErrorTypeUI})
		require.NoError(t, err)
		require.NoError(t, svc.Refresh(ctx))
	}
	ctx := context.Background()

	// 第一次读到的是提交前的数据
	tickets, err := svc.ListTickets(ctx)
	require.NoError(t, err)
	assert.Empty(t, tickets)

	// 旧快照不能盖住 Refresh
	tickets, err = svc.ListTickets(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, model.StatusSolved, tickets[0].Status)
}

func TestListTickets_LimitedToNewest(t *testing.T) {
	f := newSupportFixture(t)
	ctx := context.Background()

	for i := 0; i < TicketListLimit+5; i++ {
		require.NoError(t, f.store.Create(ctx, &model.SupportTicket{
			AppName: "App", ProblemDescription: "p", ErrorType: model.ErrorTypeOther, Priority: model.PriorityLow, Status: model.StatusAnalyzing,
		}))
	}

	tickets, err := f.svc.ListTickets(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, TicketListLimit)
	assert.Equal(t, uint(TicketListLimit+5), tickets[0].ID)
}

func TestGetTicketDetail(t *testing.T) {
	f := newSupportFixture(t)
	ctx := context.Background()

	ticket := &model.SupportTicket{
		AppName:            "Acme CRM",
		ProblemDescription: "x",
		ErrorType:          model.ErrorTypeUI,
		Priority:           model.PriorityLow,
		Status:             model.StatusSolved,
		ImageURLs:          "http://a/1.png,http://a/2.png",
		Solutions:          "{not json",
	}
	require.NoError(t, f.store.Create(ctx, ticket))

	detail, err := f.svc.GetTicketDetail(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, []Solution{}, detail.ParsedSolutions)
	assert.Equal(t, []string{"http://a/1.png", "http://a/2.png"}, detail.ImageURLList)

	_, err = f.svc.GetTicketDetail(ctx, ticket.ID+100)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSplitImageURLs(t *testing.T) {
	assert.Equal(t, []string{}, SplitImageURLs(""))
	assert.Equal(t, []string{"a", "b"}, SplitImageURLs(" a ,, b,"))
}
