package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"jobhunt-billing/internal/config"
	"jobhunt-billing/internal/domain"
	"jobhunt-billing/internal/domain/model"
	"jobhunt-billing/internal/domain/ports/repository"
	pg "jobhunt-billing/internal/infra/db/postgres"
)

// schema is idempotent so seed can run on every deploy.
const schema = `
CREATE TABLE IF NOT EXISTS billing_accounts (
  id                        UUID PRIMARY KEY,
  user_id                   UUID NOT NULL UNIQUE,
  tier                      TEXT NOT NULL,
  subscription_status       TEXT NOT NULL,
  credits_used_this_period  BIGINT NOT NULL DEFAULT 0,
  purchased_credits         BIGINT NOT NULL DEFAULT 0,
  period_start              TIMESTAMPTZ NOT NULL,
  period_end                TIMESTAMPTZ NOT NULL,
  external_subscription_ref TEXT,
  created_at                TIMESTAMPTZ NOT NULL,
  updated_at                TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_billing_accounts_period_end ON billing_accounts (period_end);
CREATE INDEX IF NOT EXISTS idx_billing_accounts_sub_ref ON billing_accounts (external_subscription_ref);

CREATE TABLE IF NOT EXISTS usage_events (
  id              TEXT PRIMARY KEY,
  account_id      UUID NOT NULL,
  action_kind     TEXT NOT NULL,
  credits_charged BIGINT NOT NULL DEFAULT 0,
  result          TEXT NOT NULL,
  created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_events_account ON usage_events (account_id, id DESC);

CREATE TABLE IF NOT EXISTS webhook_events (
  id                UUID PRIMARY KEY,
  provider_event_id TEXT NOT NULL UNIQUE,
  event_type        TEXT NOT NULL,
  applied_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS credit_refunds (
  id          UUID PRIMARY KEY,
  receipt_id  UUID NOT NULL UNIQUE,
  account_id  UUID NOT NULL,
  action_kind TEXT NOT NULL,
  amount      BIGINT NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL
);
`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	demo := flag.Bool("demo", false, "also create a demo account")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	fmt.Println("schema applied")

	if !*demo {
		return
	}

	accounts := pg.NewAccountRepo(pool)
	userID := uuid.NewString()
	acct, err := model.NewAccount(uuid.NewString(), userID, time.Now())
	if err != nil {
		log.Fatalf("new account: %v", err)
	}
	if err := accounts.Save(ctx, repository.NoTX, acct); err != nil {
		if err == domain.ErrAlreadyExists {
			fmt.Println("demo account already present, no changes")
			return
		}
		log.Fatalf("save demo account: %v", err)
	}
	fmt.Printf("seeded demo account: id=%s user_id=%s tier=%s\n", acct.ID, acct.UserID, acct.Tier)
}
