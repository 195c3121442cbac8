package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-debt-summary/debt"
)

// MemoryStore is an in-process Reader for tests and local runs.
// Users keep insertion order; debts are returned sorted like BunStore.
type MemoryStore struct {
	mu    sync.RWMutex
	users []debt.User
	debts map[uuid.UUID]debt.Debt
	calls map[string]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		debts: make(map[uuid.UUID]debt.Debt),
		calls: make(map[string]int),
	}
}

// PutUser inserts or replaces a user.
func (m *MemoryStore) PutUser(u debt.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == u.ID {
			m.users[i] = u
			return
		}
	}
	m.users = append(m.users, u)
}

// PutDebt inserts or replaces a debt.
func (m *MemoryStore) PutDebt(d debt.Debt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debts[d.ID] = d
}

// DeleteDebt removes a debt. Unknown ids are ignored.
func (m *MemoryStore) DeleteDebt(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.debts, id)
}

// Calls reports how many times a Reader method ran.
func (m *MemoryStore) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

func (m *MemoryStore) track(method string) {
	m.calls[method]++
}

func (m *MemoryStore) GetAllDebts(ctx context.Context) ([]debt.Debt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("GetAllDebts")
	return m.sorted(func(debt.Debt) bool { return true }), nil
}

func (m *MemoryStore) GetDebtsByUser(ctx context.Context, userID uuid.UUID) ([]debt.Debt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("GetDebtsByUser")
	return m.sorted(func(d debt.Debt) bool { return d.UserID == userID }), nil
}

func (m *MemoryStore) GetAllUsers(ctx context.Context) ([]debt.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("GetAllUsers")
	return append([]debt.User(nil), m.users...), nil
}

func (m *MemoryStore) GetUser(ctx context.Context, userID uuid.UUID) (debt.User, error) {
	if err := ctx.Err(); err != nil {
		return debt.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("GetUser")
	for _, u := range m.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return debt.User{}, fmt.Errorf("store: user %s: %w", userID, debt.ErrNotFound)
}

func (m *MemoryStore) CountDebtsByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("CountDebtsByUser")
	return m.count(userID), nil
}

func (m *MemoryStore) GetDebtsPage(ctx context.Context, userID uuid.UUID, skip, take int) ([]debt.Debt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("GetDebtsPage")
	return m.page(userID, skip, take), nil
}

// DebtsPage returns the page and the count under one lock.
func (m *MemoryStore) DebtsPage(ctx context.Context, userID uuid.UUID, skip, take int) ([]debt.Debt, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("DebtsPage")
	return m.page(userID, skip, take), m.count(userID), nil
}

// Snapshot returns every user and debt under one lock.
func (m *MemoryStore) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("Snapshot")
	return Snapshot{
		Debts: m.sorted(func(debt.Debt) bool { return true }),
		Users: append([]debt.User(nil), m.users...),
	}, nil
}

func (m *MemoryStore) count(userID uuid.UUID) int {
	n := 0
	for _, d := range m.debts {
		if d.UserID == userID {
			n++
		}
	}
	return n
}

func (m *MemoryStore) page(userID uuid.UUID, skip, take int) []debt.Debt {
	all := m.sorted(func(d debt.Debt) bool { return d.UserID == userID })
	if skip < 0 {
		skip = 0
	}
	if take < 1 || skip >= len(all) {
		return []debt.Debt{}
	}
	end := len(all)
	if take < end-skip {
		end = skip + take
	}
	return all[skip:end]
}

// sorted returns matching debts by due date descending, id ascending on ties.
func (m *MemoryStore) sorted(keep func(debt.Debt) bool) []debt.Debt {
	out := make([]debt.Debt, 0, len(m.debts))
	for _, d := range m.debts {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.After(out[j].DueDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
