package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repositories struct {
	*UserRepository
	*RequestRepository
	*ResponseRepository
	*DonationRepository
	*CenterRepository
}

func newRepositories(db querier) *repositories {
	return &repositories{
		UserRepository:     NewUserRepository(db),
		RequestRepository:  NewRequestRepository(db),
		ResponseRepository: NewResponseRepository(db),
		DonationRepository: NewDonationRepository(db),
		CenterRepository:   NewCenterRepository(db),
	}
}

var _ Store = (*Postgres)(nil)

// Postgres is the pgx backed Store.
type Postgres struct {
	*repositories
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{repositories: newRepositories(pool), pool: pool}
}

// Ping backs the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// RunInTx runs fn against repositories bound to a single transaction.
// The transaction commits only when fn returns nil.
func (p *Postgres) RunInTx(ctx context.Context, fn func(q Queries) error) error {
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(newRepositories(tx))
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
