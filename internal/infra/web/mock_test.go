package web

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jobhunt-billing/internal/catalog"
	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/domain/model"
	"jobhunt-billing/internal/domain/ports/repository"
	"jobhunt-billing/internal/infra/payment"
	"jobhunt-billing/internal/usecase"
)

// In-memory ports for handler tests. The handler layer only needs the
// happy-path semantics plus the duplicate-event constraint.

type stubTx struct{ unlocks []func() }

type stubTxManager struct{}

func (m *stubTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx := &stubTx{}
	err := fn(ctx, tx)
	for i := len(tx.unlocks) - 1; i >= 0; i-- {
		tx.unlocks[i]()
	}
	return err
}

type stubAccountRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Account
	locks sync.Map
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{store: make(map[string]*model.Account)}
}

func (m *stubAccountRepo) put(a *model.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.store[a.ID] = &cp
}

func (m *stubAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	m.put(a)
	return nil
}

func (m *stubAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *stubAccountRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.store {
		if a.UserID == userID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *stubAccountRepo) FindBySubscriptionRef(ctx context.Context, tx repository.Tx, ref string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.store {
		if a.ExternalSubscriptionRef != nil && *a.ExternalSubscriptionRef == ref {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *stubAccountRepo) Lock(ctx context.Context, tx repository.Tx, id string) error {
	t, ok := tx.(*stubTx)
	if !ok {
		return domain.ErrInvalidExecContext
	}
	muI, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	mu := muI.(*sync.Mutex)
	mu.Lock()
	t.unlocks = append(t.unlocks, mu.Unlock)
	return nil
}

func (m *stubAccountRepo) FindDueForRollover(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Account, error) {
	return nil, nil
}

type stubUsageRepo struct {
	mu     sync.Mutex
	events []*model.UsageEvent
}

func (m *stubUsageRepo) Append(ctx context.Context, tx repository.Tx, e *model.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *stubUsageRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]*model.UsageEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.UsageEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].AccountID == accountID {
			cp := *m.events[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *stubUsageRepo) CountByResult(ctx context.Context, tx repository.Tx, accountID string, result model.UsageResult) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.AccountID == accountID && e.Result == result {
			n++
		}
	}
	return n, nil
}

type stubWebhookRepo struct {
	mu    sync.Mutex
	byPID map[string]*model.WebhookEvent
}

func newStubWebhookRepo() *stubWebhookRepo {
	return &stubWebhookRepo{byPID: make(map[string]*model.WebhookEvent)}
}

func (m *stubWebhookRepo) Insert(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byPID[e.ProviderEventID]; ok {
		return domain.ErrDuplicateWebhookEvent
	}
	cp := *e
	m.byPID[e.ProviderEventID] = &cp
	return nil
}

func (m *stubWebhookRepo) FindByProviderEventID(ctx context.Context, tx repository.Tx, pid string) (*model.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byPID[pid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

type stubRefundRepo struct {
	mu        sync.Mutex
	byReceipt map[string]*model.Refund
}

func newStubRefundRepo() *stubRefundRepo {
	return &stubRefundRepo{byReceipt: make(map[string]*model.Refund)}
}

func (m *stubRefundRepo) Insert(ctx context.Context, tx repository.Tx, r *model.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byReceipt[r.ReceiptID]; ok {
		return domain.ErrDuplicateRefund
	}
	cp := *r
	m.byReceipt[r.ReceiptID] = &cp
	return nil
}

func (m *stubRefundRepo) FindByReceiptID(ctx context.Context, tx repository.Tx, receiptID string) (*model.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byReceipt[receiptID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

const (
	testWebhookSecret = "whsec_dev"
	testAPIKey        = "internal-test-key"
)

// testStack wires the full handler stack against in-memory ports.
type testStack struct {
	server   *Server
	auth     *AuthManager
	accounts *stubAccountRepo
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	nop := zerolog.Nop()
	logger := &nop

	cat, err := catalog.New(catalog.Options{})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	accounts := newStubAccountRepo()
	usage := &stubUsageRepo{}
	webhooks := newStubWebhookRepo()
	txm := &stubTxManager{}
	gateway := payment.NewNoopGateway(testWebhookSecret)

	ledger := usecase.NewCreditLedger(accounts, newStubRefundRepo(), cat, txm, logger)
	guard := usecase.NewUsageGuard(ledger, accounts, usage, cat, logger)
	lifecycle := usecase.NewSubscriptionLifecycle(accounts, webhooks, cat, txm, logger)
	billing := usecase.NewBillingService(accounts, ledger, cat, gateway, txm, "https://app.test/ok", "https://app.test/no", logger)

	auth := NewAuthManager("test-jwt-secret", time.Hour)
	webhookHandler := NewWebhookHandler(gateway, lifecycle, logger)
	server := NewServer(billing, guard, webhookHandler, auth, nil, testAPIKey, 0, logger)

	return &testStack{server: server, auth: auth, accounts: accounts}
}

func (s *testStack) seedAccount(t *testing.T, id string) *model.Account {
	t.Helper()
	a, err := model.NewAccount(id, "user-"+id, time.Now())
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	s.accounts.put(a)
	return a
}

func (s *testStack) token(t *testing.T, accountID string) string {
	t.Helper()
	tok, err := s.auth.Mint(accountID)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return tok
}
