package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/domain/model"
)

func newBillingFixture(t *testing.T) (*BillingService, *memAccountRepo, *fakeGateway) {
	t.Helper()
	accounts := newMemAccountRepo()
	cat := testCatalog(t)
	tm := newMemTxManager()
	ledger := NewCreditLedger(accounts, newMemRefundRepo(), cat, tm, testLogger())
	gw := &fakeGateway{}
	svc := NewBillingService(accounts, ledger, cat, gw, tm, "https://app.test/success", "https://app.test/cancel", testLogger())
	return svc, accounts, gw
}

func TestBillingService_Current(t *testing.T) {
	t.Parallel()

	t.Run("free tier reports concrete counts", func(t *testing.T) {
		t.Parallel()
		svc, accounts, _ := newBillingFixture(t)
		acct := freeAccount(t, accounts, "acct-1")
		acct.CreditsUsedThisPeriod = 25
		acct.PurchasedCredits = 10
		putAccount(accounts, acct)

		sum, err := svc.Current(context.Background(), "acct-1")
		if err != nil {
			t.Fatalf("Current: %v", err)
		}
		if sum.PlanName != "Free" || sum.Tier != model.TierFree {
			t.Errorf("plan = %s/%s, want Free/free", sum.PlanName, sum.Tier)
		}
		if sum.CreditsRemaining != 85 {
			t.Errorf("CreditsRemaining = %d, want 85", sum.CreditsRemaining)
		}
		if sum.CreditsTotal != 110 {
			t.Errorf("CreditsTotal = %d, want 110", sum.CreditsTotal)
		}
	})

	t.Run("unlimited tier keeps the -1 wire sentinel", func(t *testing.T) {
		t.Parallel()
		svc, accounts, _ := newBillingFixture(t)
		acct := freeAccount(t, accounts, "acct-2")
		acct.Tier = model.TierPro
		acct.SubscriptionStatus = model.SubscriptionStatusActive
		putAccount(accounts, acct)

		sum, err := svc.Current(context.Background(), "acct-2")
		if err != nil {
			t.Fatalf("Current: %v", err)
		}
		if sum.CreditsRemaining != -1 || sum.CreditsTotal != -1 {
			t.Errorf("credits = %d/%d, want -1/-1", sum.CreditsRemaining, sum.CreditsTotal)
		}
		if sum.Status != model.SubscriptionStatusActive {
			t.Errorf("Status = %s, want active", sum.Status)
		}
	})
}

func TestBillingService_Plans(t *testing.T) {
	t.Parallel()
	svc, _, _ := newBillingFixture(t)
	plans, packs := svc.Plans()
	if len(plans) != 3 {
		t.Errorf("got %d plans, want 3", len(plans))
	}
	if len(packs) != 3 {
		t.Errorf("got %d packs, want 3", len(packs))
	}
}

func TestBillingService_Checkout(t *testing.T) {
	t.Parallel()

	t.Run("creates a subscription session", func(t *testing.T) {
		t.Parallel()
		svc, accounts, gw := newBillingFixture(t)
		freeAccount(t, accounts, "acct-1")

		url, err := svc.Checkout(context.Background(), "acct-1", model.TierPro, model.IntervalMonth)
		if err != nil {
			t.Fatalf("Checkout: %v", err)
		}
		if url == "" {
			t.Error("empty checkout URL")
		}
		if len(gw.sessions) != 1 {
			t.Fatalf("gateway saw %d sessions, want 1", len(gw.sessions))
		}
		p := gw.sessions[0]
		if p.Mode != model.CheckoutModeSubscription || p.Plan == nil || p.Plan.ID != model.TierPro {
			t.Errorf("session params = %+v, want pro subscription", p)
		}
	})

	t.Run("free tier has no checkout", func(t *testing.T) {
		t.Parallel()
		svc, accounts, _ := newBillingFixture(t)
		freeAccount(t, accounts, "acct-2")
		if _, err := svc.Checkout(context.Background(), "acct-2", model.TierFree, model.IntervalMonth); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("unknown tier", func(t *testing.T) {
		t.Parallel()
		svc, accounts, _ := newBillingFixture(t)
		freeAccount(t, accounts, "acct-3")
		if _, err := svc.Checkout(context.Background(), "acct-3", model.Tier("platinum"), model.IntervalMonth); !errors.Is(err, domain.ErrUnknownTier) {
			t.Errorf("err = %v, want ErrUnknownTier", err)
		}
	})

	t.Run("invalid interval", func(t *testing.T) {
		t.Parallel()
		svc, accounts, _ := newBillingFixture(t)
		freeAccount(t, accounts, "acct-4")
		if _, err := svc.Checkout(context.Background(), "acct-4", model.TierPro, model.BillingInterval("weekly")); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestBillingService_PackCheckout(t *testing.T) {
	t.Parallel()
	svc, accounts, gw := newBillingFixture(t)
	freeAccount(t, accounts, "acct-1")

	if _, err := svc.PackCheckout(context.Background(), "acct-1", "pack_small"); err != nil {
		t.Fatalf("PackCheckout: %v", err)
	}
	if len(gw.sessions) != 1 || gw.sessions[0].Mode != model.CheckoutModePayment {
		t.Fatalf("gateway sessions = %+v, want one payment-mode session", gw.sessions)
	}
	if gw.sessions[0].Pack == nil || gw.sessions[0].Pack.Credits != 100 {
		t.Errorf("session pack = %+v, want pack_small with 100 credits", gw.sessions[0].Pack)
	}

	if _, err := svc.PackCheckout(context.Background(), "acct-1", "pack_bogus"); !errors.Is(err, domain.ErrUnknownCreditPack) {
		t.Errorf("err = %v, want ErrUnknownCreditPack", err)
	}
}

func TestBillingService_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("cancels at the provider and locally", func(t *testing.T) {
		t.Parallel()
		svc, accounts, gw := newBillingFixture(t)
		acct := freeAccount(t, accounts, "acct-1")
		acct.Tier = model.TierPro
		acct.SubscriptionStatus = model.SubscriptionStatusActive
		ref := "sub_123"
		acct.ExternalSubscriptionRef = &ref
		putAccount(accounts, acct)

		if err := svc.Cancel(context.Background(), "acct-1"); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if len(gw.cancelled) != 1 || gw.cancelled[0] != "sub_123" {
			t.Errorf("gateway cancellations = %v, want [sub_123]", gw.cancelled)
		}
		got := mustAccount(t, accounts, "acct-1")
		if got.SubscriptionStatus != model.SubscriptionStatusCancelled {
			t.Errorf("Status = %s, want cancelled", got.SubscriptionStatus)
		}
		// entitlements run until period end
		if got.Tier != model.TierPro {
			t.Errorf("Tier = %s, want pro until period end", got.Tier)
		}
	})

	t.Run("keeps a period renewal committed during the provider call", func(t *testing.T) {
		t.Parallel()
		svc, accounts, gw := newBillingFixture(t)
		acct := freeAccount(t, accounts, "acct-5")
		acct.Tier = model.TierPro
		acct.SubscriptionStatus = model.SubscriptionStatusActive
		acct.CreditsUsedThisPeriod = 40
		ref := "sub_456"
		acct.ExternalSubscriptionRef = &ref
		putAccount(accounts, acct)

		// an invoice webhook lands while we wait on the provider: it rolls
		// the window and zeroes the usage before Cancel writes its status
		renewedEnd := acct.PeriodEnd.Add(model.DefaultBillingCycle)
		gw.cancelHook = func() {
			renewed := mustAccount(t, accounts, "acct-5")
			renewed.CreditsUsedThisPeriod = 0
			renewed.PeriodStart = acct.PeriodEnd
			renewed.PeriodEnd = renewedEnd
			putAccount(accounts, renewed)
		}

		if err := svc.Cancel(context.Background(), "acct-5"); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		got := mustAccount(t, accounts, "acct-5")
		if got.SubscriptionStatus != model.SubscriptionStatusCancelled {
			t.Errorf("Status = %s, want cancelled", got.SubscriptionStatus)
		}
		if got.CreditsUsedThisPeriod != 0 {
			t.Errorf("CreditsUsedThisPeriod = %d, renewal was overwritten", got.CreditsUsedThisPeriod)
		}
		if !got.PeriodEnd.Equal(renewedEnd) {
			t.Errorf("PeriodEnd = %v, want renewed %v", got.PeriodEnd, renewedEnd)
		}
	})

	t.Run("rejected without an active subscription", func(t *testing.T) {
		t.Parallel()
		svc, accounts, _ := newBillingFixture(t)
		freeAccount(t, accounts, "acct-2")
		if err := svc.Cancel(context.Background(), "acct-2"); !errors.Is(err, domain.ErrNoActiveSubscription) {
			t.Errorf("err = %v, want ErrNoActiveSubscription", err)
		}
	})

	t.Run("provider failure leaves local state untouched", func(t *testing.T) {
		t.Parallel()
		svc, accounts, gw := newBillingFixture(t)
		acct := freeAccount(t, accounts, "acct-3")
		acct.SubscriptionStatus = model.SubscriptionStatusActive
		ref := "sub_err"
		acct.ExternalSubscriptionRef = &ref
		putAccount(accounts, acct)
		gw.cancelErr = errors.New("provider unavailable")

		if err := svc.Cancel(context.Background(), "acct-3"); err == nil {
			t.Fatal("Cancel succeeded despite provider failure")
		}
		if got := mustAccount(t, accounts, "acct-3").SubscriptionStatus; got != model.SubscriptionStatusActive {
			t.Errorf("Status = %s, want still active", got)
		}
	})
}

func TestBillingService_EnsureAccount(t *testing.T) {
	t.Parallel()

	t.Run("creates on first touch, returns the same row after", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newBillingFixture(t)

		first, err := svc.EnsureAccount(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("EnsureAccount: %v", err)
		}
		if first.Tier != model.TierFree || first.SubscriptionStatus != model.SubscriptionStatusNone {
			t.Errorf("new account = %s/%s, want free/none", first.Tier, first.SubscriptionStatus)
		}

		second, err := svc.EnsureAccount(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("EnsureAccount (again): %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("EnsureAccount created a second account: %s vs %s", second.ID, first.ID)
		}
	})

	t.Run("losing a first-touch race returns the winner's row", func(t *testing.T) {
		t.Parallel()
		svc, accounts, _ := newBillingFixture(t)

		// another instance creates user-2's account between our lookup and
		// our insert, so the unique user_id index rejects ours
		winner, err := model.NewAccount("acct-winner", "user-2", time.Now())
		if err != nil {
			t.Fatalf("NewAccount: %v", err)
		}
		accounts.saveHook = func(*model.Account) error {
			accounts.saveHook = nil
			putAccount(accounts, winner)
			return domain.ErrAlreadyExists
		}

		got, err := svc.EnsureAccount(context.Background(), "user-2")
		if err != nil {
			t.Fatalf("EnsureAccount: %v", err)
		}
		if got.ID != "acct-winner" {
			t.Errorf("account ID = %s, want the winner's acct-winner", got.ID)
		}
	})
}
