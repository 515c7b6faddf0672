package repository

import "context"

// Tx is an opaque transaction handle. The concrete type is infra-defined
// (pgx.Tx for Postgres, nil for in-memory repos). Repositories MUST accept
// a nil Tx and fall back to their non-transactional path.
type Tx interface{}

// NoTX marks the non-transactional path explicitly at call sites.
var NoTX Tx

// TransactionManager executes fn inside a transaction, passing the handle
// through so repositories can bind their statements to it. If fn returns an
// error the transaction rolls back, otherwise it commits.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
