// Package repository provides data access layer implementations.
package repository

import (
	"context"

	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier returns the transaction bound to ctx by the transaction manager,
// or the pool when the call runs outside a transaction.
func querier(ctx context.Context, pool *pgxpool.Pool) trmpgx.Tr {
	return trmpgx.DefaultCtxGetter.DefaultTrOrDB(ctx, pool)
}
