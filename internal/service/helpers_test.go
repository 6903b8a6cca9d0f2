package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"support-lab/internal/config"
	"support-lab/internal/db"
	"support-lab/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return conn
}

// callLog 记录 store 与 gateway 的调用顺序
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(name string) int {
	n := 0
	for _, c := range l.list() {
		if c == name {
			n++
		}
	}
	return n
}

type recordingStore struct {
	TicketStore
	log *callLog
}

func (s *recordingStore) Create(ctx context.Context, ticket *model.SupportTicket) error {
	s.log.add("create")
	return s.TicketStore.Create(ctx, ticket)
}

func (s *recordingStore) Update(ctx context.Context, id uint, fields map[string]interface{}) (*model.SupportTicket, error) {
	s.log.add("update")
	return s.TicketStore.Update(ctx, id, fields)
}

func (s *recordingStore) List(ctx context.Context, sort string, limit int) ([]model.SupportTicket, error) {
	s.log.add("list")
	return s.TicketStore.List(ctx, sort, limit)
}

// submitDuringListStore 在第一次 List 读库之后、回写缓存之前执行 onList
type submitDuringListStore struct {
	TicketStore
	once   sync.Once
	onList func(ctx context.Context)
}

func (s *submitDuringListStore) List(ctx context.Context, sort string, limit int) ([]model.SupportTicket, error) {
	tickets, err := s.TicketStore.List(ctx, sort, limit)
	if err == nil && s.onList != nil {
		s.once.Do(func() { s.onList(ctx) })
	}
	return tickets, err
}

type fakeGateway struct {
	log      *callLog
	result   *InvokeResult
	err      error
	requests []InvokeRequest
}

func (g *fakeGateway) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	if g.log != nil {
		g.log.add("invoke")
	}
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func jsonResult(s string) *InvokeResult {
	return &InvokeResult{Text: s, JSON: []byte(s), TotalTokens: 42}
}

type supportFixture struct {
	conn    *gorm.DB
	log     *callLog
	store   *recordingStore
	gateway *fakeGateway
	svc     *SupportService
}

func newSupportFixture(t *testing.T) *supportFixture {
	t.Helper()
	conn := setupTestDB(t)
	log := &callLog{}
	store := &recordingStore{TicketStore: NewGormTicketStore(conn), log: log}
	gateway := &fakeGateway{log: log}
	return &supportFixture{
		conn:    conn,
		log:     log,
		store:   store,
		gateway: gateway,
		svc:     NewSupportService(store, gateway, NewMemoryTicketCache(0)),
	}
}

func (f *supportFixture) allTickets(t *testing.T) []model.SupportTicket {
	t.Helper()
	var tickets []model.SupportTicket
	require.NoError(t, f.conn.Order("id").Find(&tickets).Error)
	return tickets
}
