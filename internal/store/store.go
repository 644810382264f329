// Package store persists users, blood requests, responses, donations and centers.
package store

import (
	"context"

	"redblood/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queries is the set of reads and writes available both inside and outside a transaction.
type Queries interface {
	User(ctx context.Context, userID string) (*types.User, error)
	Users(ctx context.Context, filter types.UserFilter) ([]*types.User, error)
	CreateUser(ctx context.Context, user *types.User) error
	UpdateUser(ctx context.Context, user *types.User) error
	DeleteUser(ctx context.Context, userID string) error

	Request(ctx context.Context, requestID string) (*types.BloodRequest, error)
	// LockRequest reads a request and holds it against concurrent writers until the transaction ends.
	LockRequest(ctx context.Context, requestID string) (*types.BloodRequest, error)
	Requests(ctx context.Context, filter types.RequestFilter) ([]*types.BloodRequest, error)
	CreateRequest(ctx context.Context, request *types.BloodRequest) error
	UpdateRequest(ctx context.Context, request *types.BloodRequest) error
	DeleteRequest(ctx context.Context, requestID string) error

	Response(ctx context.Context, responseID string) (*types.Response, error)
	Responses(ctx context.Context, filter types.ResponseFilter) ([]*types.Response, error)
	CreateResponse(ctx context.Context, response *types.Response) error
	UpdateResponse(ctx context.Context, response *types.Response) error
	DeleteResponses(ctx context.Context, filter types.ResponseFilter) error

	Donation(ctx context.Context, donationID string) (*types.Donation, error)
	Donations(ctx context.Context, filter types.DonationFilter) ([]*types.Donation, error)
	CreateDonation(ctx context.Context, donation *types.Donation) error
	UpdateDonation(ctx context.Context, donation *types.Donation) error
	DeleteDonations(ctx context.Context, userID string) error

	Center(ctx context.Context, centerID string) (*types.DonationCenter, error)
	Centers(ctx context.Context, filter types.CenterFilter) ([]*types.DonationCenter, error)
	CreateCenter(ctx context.Context, center *types.DonationCenter) error
	UpdateCenter(ctx context.Context, center *types.DonationCenter) error
}

// Store adds an all-or-nothing unit of work on top of Queries.
type Store interface {
	Queries
	RunInTx(ctx context.Context, fn func(q Queries) error) error
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}
