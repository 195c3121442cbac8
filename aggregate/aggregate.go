// Package aggregate computes debt summaries from a snapshot of debts and users.
//
// The functions here perform no I/O and never read the clock: the caller passes
// asOf, which is both the processing day used for overdue checks (compared at UTC
// day granularity) and the ComputedAt stamp of the result.
package aggregate

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goliatone/go-debt-summary/debt"
)

// bucket accumulates the counters of one owner.
type bucket struct {
	totalAmount   decimal.Decimal
	totalDebts    int
	paidDebts     int
	overdueDebts  int
	overdueAmount decimal.Decimal
}

func (b *bucket) add(d debt.Debt, asOf time.Time) {
	b.totalAmount = b.totalAmount.Add(d.Amount)
	b.totalDebts++
	if d.Paid {
		b.paidDebts++
	}
	if d.IsOverdue(asOf) {
		b.overdueDebts++
		b.overdueAmount = b.overdueAmount.Add(d.Amount)
	}
}

func (b *bucket) summary(u debt.User, asOf time.Time) debt.UserDebtSummary {
	return debt.UserDebtSummary{
		UserID:        u.ID,
		UserName:      u.Name,
		TotalAmount:   b.totalAmount,
		TotalDebts:    b.totalDebts,
		PaidDebts:     b.paidDebts,
		OverdueDebts:  b.overdueDebts,
		OverdueAmount: b.overdueAmount,
		ComputedAt:    asOf,
	}
}

func newBucket() *bucket {
	return &bucket{totalAmount: decimal.Zero, overdueAmount: decimal.Zero}
}

// Summarize builds the system summary in a single pass over debts.
//
// Users appear in the order of the users slice and only when they own at least
// one debt. Debts referencing an unknown user are kept out of every user summary
// and reported as orphans; system totals are derived from the per-user buckets
// plus the orphan bucket so they always reconcile.
func Summarize(debts []debt.Debt, users []debt.User, asOf time.Time) debt.SystemDebtSummary {
	known := make(map[uuid.UUID]struct{}, len(users))
	for _, u := range users {
		known[u.ID] = struct{}{}
	}

	buckets := make(map[uuid.UUID]*bucket, len(users))
	orphans := newBucket()
	for _, d := range debts {
		if _, ok := known[d.UserID]; !ok {
			orphans.add(d, asOf)
			continue
		}
		b, ok := buckets[d.UserID]
		if !ok {
			b = newBucket()
			buckets[d.UserID] = b
		}
		b.add(d, asOf)
	}

	result := debt.SystemDebtSummary{
		Users:          make([]debt.UserDebtSummary, 0, len(buckets)),
		TotalAmount:    decimal.Zero,
		OrphanedDebts:  orphans.totalDebts,
		OrphanedAmount: orphans.totalAmount,
		ComputedAt:     asOf,
	}

	seen := make(map[uuid.UUID]struct{}, len(buckets))
	for _, u := range users {
		b, ok := buckets[u.ID]
		if !ok {
			continue
		}
		// duplicated user rows must not double count
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}

		s := b.summary(u, asOf)
		result.Users = append(result.Users, s)
		result.TotalAmount = result.TotalAmount.Add(s.TotalAmount)
		result.TotalDebts += s.TotalDebts
		result.OverdueDebts += s.OverdueDebts
	}

	result.TotalAmount = result.TotalAmount.Add(orphans.totalAmount)
	result.TotalDebts += orphans.totalDebts
	result.OverdueDebts += orphans.overdueDebts

	return result
}

// SummarizeUser builds the summary of a single user. Debts owned by anyone else
// are ignored. A user without debts yields a zero summary rather than nothing.
func SummarizeUser(user debt.User, debts []debt.Debt, asOf time.Time) debt.UserDebtSummary {
	b := newBucket()
	for _, d := range debts {
		if d.UserID != user.ID {
			continue
		}
		b.add(d, asOf)
	}
	return b.summary(user, asOf)
}
