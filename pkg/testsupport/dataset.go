package testsupport

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-debt-summary/debt"
	"github.com/goliatone/go-debt-summary/store"
)

// Well-known identifiers in the u1 dataset.
var (
	AdaID   = uuid.MustParse("11111111-1111-4111-8111-111111111111")
	GraceID = uuid.MustParse("22222222-2222-4222-8222-222222222222")
	LinusID = uuid.MustParse("33333333-3333-4333-8333-333333333333")
)

// Dataset is a set of users and debts plus the instant summaries are computed at.
type Dataset struct {
	AsOf  time.Time   `json:"as_of"`
	Users []debt.User `json:"users"`
	Debts []debt.Debt `json:"debts"`
}

// LoadDataset decodes an embedded dataset by name, e.g. "u1".
//
// u1 holds three users. Ada owes 100 overdue, 50 paid and 30 due on the
// as-of day; Grace owes 40 overdue and 60 not yet due; Linus owes nothing.
func LoadDataset(t testing.TB, name string) Dataset {
	t.Helper()

	var ds Dataset
	DecodeFixture(t, name+".json", &ds)
	return ds
}

// DebtsOf returns the dataset debts owned by userID.
func (ds Dataset) DebtsOf(userID uuid.UUID) []debt.Debt {
	var out []debt.Debt
	for _, d := range ds.Debts {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out
}

// User returns the dataset user with id.
func (ds Dataset) User(id uuid.UUID) debt.User {
	for _, u := range ds.Users {
		if u.ID == id {
			return u
		}
	}
	return debt.User{}
}

// NewMemoryStore returns a MemoryStore seeded with ds.
func NewMemoryStore(ds Dataset) *store.MemoryStore {
	m := store.NewMemoryStore()
	for _, u := range ds.Users {
		m.PutUser(u)
	}
	for _, d := range ds.Debts {
		m.PutDebt(d)
	}
	return m
}
