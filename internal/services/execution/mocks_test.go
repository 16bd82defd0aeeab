package execution

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/vadiminshakov/asterbot/internal/domain"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*domain.OrderResult)
	return res, args.Error(1)
}

func (m *mockGateway) GetAccountInfo(ctx context.Context) (*domain.AccountInfo, error) {
	args := m.Called(ctx)
	info, _ := args.Get(0).(*domain.AccountInfo)
	return info, args.Error(1)
}

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) GetCurrentPosition(ctx context.Context, symbol string) domain.PositionState {
	args := m.Called(ctx, symbol)
	return args.Get(0).(domain.PositionState)
}

type fakeSnapshots struct {
	snapshot *domain.MarketSnapshot
	err      error
	builds   int
}

func (f *fakeSnapshots) Build(context.Context) (*domain.MarketSnapshot, error) {
	f.builds++
	return f.snapshot, f.err
}

type fakeAdvisor struct {
	signal domain.Signal
}

func (f fakeAdvisor) Advise(context.Context, *domain.MarketSnapshot) domain.Signal {
	return f.signal
}

type memoryRecords struct {
	mu        sync.Mutex
	analyses  []domain.AnalysisRecord
	actions   []domain.TradeActionRecord
	positions []domain.PositionRecord
	accounts  []domain.AccountRecord
	equity    []domain.EquityRecord
}

func (m *memoryRecords) SaveAnalysis(_ context.Context, rec domain.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = append(m.analyses, rec)
	return nil
}

func (m *memoryRecords) SaveTradeAction(_ context.Context, rec domain.TradeActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, rec)
	return nil
}

func (m *memoryRecords) SavePosition(_ context.Context, rec domain.PositionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append(m.positions, rec)
	return nil
}

func (m *memoryRecords) SaveAccount(_ context.Context, rec domain.AccountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append(m.accounts, rec)
	return nil
}

func (m *memoryRecords) SaveEquity(_ context.Context, rec domain.EquityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = append(m.equity, rec)
	return nil
}

type recordingPublisher struct {
	names []string
}

func (p *recordingPublisher) Publish(name string, _ any) {
	p.names = append(p.names, name)
}
