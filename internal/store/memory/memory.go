// Package memory is an in-process Store used by tests and the --memory serve mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"redblood/internal/store"
	"redblood/internal/utils"
	"redblood/pkg/types"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

// RunInTx applies fn to a copy of the data and swaps it in only when fn succeeds.
// Concurrent transactions are serialised.
func (s *Store) RunInTx(ctx context.Context, fn func(q store.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	if err := fn(&tx{state: draft, now: s.now}); err != nil {
		return err
	}
	s.state = draft
	return nil
}

// do runs a single operation directly against the committed data.
func (s *Store) do(fn func(q *tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&tx{state: s.state, now: s.now})
}

type record[T any] struct {
	seq  int
	item T
}

type state struct {
	seq       int
	users     map[string]record[*types.User]
	requests  map[string]record[*types.BloodRequest]
	responses map[string]record[*types.Response]
	donations map[string]record[*types.Donation]
	centers   map[string]record[*types.DonationCenter]
}

func newState() *state {
	return &state{
		users:     map[string]record[*types.User]{},
		requests:  map[string]record[*types.BloodRequest]{},
		responses: map[string]record[*types.Response]{},
		donations: map[string]record[*types.Donation]{},
		centers:   map[string]record[*types.DonationCenter]{},
	}
}

func cloneMap[T any](in map[string]record[T], clone func(T) T) map[string]record[T] {
	out := make(map[string]record[T], len(in))
	for k, v := range in {
		out[k] = record[T]{seq: v.seq, item: clone(v.item)}
	}
	return out
}

func (st *state) clone() *state {
	return &state{
		seq:       st.seq,
		users:     cloneMap(st.users, (*types.User).Clone),
		requests:  cloneMap(st.requests, (*types.BloodRequest).Clone),
		responses: cloneMap(st.responses, (*types.Response).Clone),
		donations: cloneMap(st.donations, (*types.Donation).Clone),
		centers:   cloneMap(st.centers, (*types.DonationCenter).Clone),
	}
}

func (st *state) next() int {
	st.seq++
	return st.seq
}

// sorted returns the records matching keep, ordered by less and then by insertion.
func sorted[T any](in map[string]record[T], keep func(T) bool, less func(a, b T) bool, clone func(T) T) []T {
	recs := make([]record[T], 0, len(in))
	for _, r := range in {
		if keep(r.item) {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if less(recs[i].item, recs[j].item) {
			return true
		}
		if less(recs[j].item, recs[i].item) {
			return false
		}
		return recs[i].seq < recs[j].seq
	})

	out := make([]T, len(recs))
	for i, r := range recs {
		out[i] = clone(r.item)
	}
	return out
}

func stamp(id *string, created, updated *time.Time, now time.Time) {
	if *id == "" {
		*id = utils.NanoID()
	}
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}

func containsType(set []types.BloodType, b types.BloodType) bool {
	for _, t := range set {
		if t == b {
			return true
		}
	}
	return false
}
