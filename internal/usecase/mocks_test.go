package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jobhunt-billing/internal/catalog"
	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/domain/model"
	"jobhunt-billing/internal/domain/ports/adapter"
	"jobhunt-billing/internal/domain/ports/repository"
)

// memTx collects the per-account unlocks acquired during one WithTx call
// so they release when the callback returns, mirroring how the advisory
// xact lock releases at commit/rollback.
type memTx struct {
	unlocks []func()
}

type memTxManager struct{}

func newMemTxManager() *memTxManager { return &memTxManager{} }

func (m *memTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx := &memTx{}
	err := fn(ctx, tx)
	for i := len(tx.unlocks) - 1; i >= 0; i-- {
		tx.unlocks[i]()
	}
	return err
}

// memAccountRepo is a small in-memory implementation used by unit tests.
type memAccountRepo struct {
	mu       sync.RWMutex
	store    map[string]*model.Account
	locks    sync.Map                     // accountID -> *sync.Mutex
	saveErr  error                        // used by tests to simulate save failures
	saveHook func(a *model.Account) error // runs before Save applies; non-nil error aborts it
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{store: make(map[string]*model.Account)}
}

func (m *memAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.saveHook != nil {
		if err := m.saveHook(a); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *memAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccountRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Account, error) {
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

func (m *memAccountRepo) FindBySubscriptionRef(ctx context.Context, tx repository.Tx, ref string) (*model.Account, error) {
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

func (m *memAccountRepo) Lock(ctx context.Context, tx repository.Tx, id string) error {
	t, ok := tx.(*memTx)
	if !ok {
		return domain.ErrInvalidExecContext
	}
	muI, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	mu := muI.(*sync.Mutex)
	mu.Lock()
	t.unlocks = append(t.unlocks, mu.Unlock)
	return nil
}

func (m *memAccountRepo) FindDueForRollover(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Account
	for _, a := range m.store {
		if now.After(a.PeriodEnd) {
			cp := *a
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

type memUsageEventRepo struct {
	mu     sync.RWMutex
	events []*model.UsageEvent
}

func newMemUsageEventRepo() *memUsageEventRepo { return &memUsageEventRepo{} }

func (m *memUsageEventRepo) Append(ctx context.Context, tx repository.Tx, e *model.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *memUsageEventRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]*model.UsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.UsageEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].AccountID == accountID {
			cp := *m.events[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memUsageEventRepo) CountByResult(ctx context.Context, tx repository.Tx, accountID string, result model.UsageResult) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.events {
		if e.AccountID == accountID && e.Result == result {
			n++
		}
	}
	return n, nil
}

type memWebhookEventRepo struct {
	mu    sync.Mutex
	byPID map[string]*model.WebhookEvent
}

func newMemWebhookEventRepo() *memWebhookEventRepo {
	return &memWebhookEventRepo{byPID: make(map[string]*model.WebhookEvent)}
}

func (m *memWebhookEventRepo) Insert(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byPID[e.ProviderEventID]; ok {
		return domain.ErrDuplicateWebhookEvent
	}
	cp := *e
	m.byPID[e.ProviderEventID] = &cp
	return nil
}

func (m *memWebhookEventRepo) FindByProviderEventID(ctx context.Context, tx repository.Tx, pid string) (*model.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byPID[pid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memWebhookEventRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byPID)
}

type memRefundRepo struct {
	mu        sync.Mutex
	byReceipt map[string]*model.Refund
}

func newMemRefundRepo() *memRefundRepo {
	return &memRefundRepo{byReceipt: make(map[string]*model.Refund)}
}

func (m *memRefundRepo) Insert(ctx context.Context, tx repository.Tx, r *model.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byReceipt[r.ReceiptID]; ok {
		return domain.ErrDuplicateRefund
	}
	cp := *r
	m.byReceipt[r.ReceiptID] = &cp
	return nil
}

func (m *memRefundRepo) FindByReceiptID(ctx context.Context, tx repository.Tx, receiptID string) (*model.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byReceipt[receiptID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRefundRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byReceipt)
}

// fakeGateway records calls and returns canned URLs.
type fakeGateway struct {
	mu         sync.Mutex
	sessions   []adapter.CheckoutParams
	cancelled  []string
	sessionErr error
	cancelErr  error
	cancelHook func() // runs during CancelSubscription, before it returns
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, p adapter.CheckoutParams) (string, error) {
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, p)
	return "https://checkout.test/session", nil
}

func (f *fakeGateway) CancelSubscription(ctx context.Context, ref string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	if f.cancelHook != nil {
		f.cancelHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, ref)
	return nil
}

func (f *fakeGateway) VerifySignature(payload []byte, header string) error { return nil }

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(catalog.Options{})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

// putAccount stores a copy directly, bypassing Save error injection.
func putAccount(repo *memAccountRepo, a *model.Account) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	cp := *a
	repo.store[a.ID] = &cp
}

func mustAccount(t *testing.T, repo *memAccountRepo, id string) *model.Account {
	t.Helper()
	a, err := repo.FindByID(context.Background(), repository.NoTX, id)
	if err != nil {
		t.Fatalf("FindByID(%s): %v", id, err)
	}
	return a
}
