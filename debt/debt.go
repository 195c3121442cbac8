// Package debt holds the records the summary subsystem reads and the
// derived summary value objects it produces.
package debt

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Debt is a monetary obligation owned by a user.
// Paid and PaidAt move together: Paid implies PaidAt != nil and !Paid implies PaidAt == nil.
type Debt struct {
	bun.BaseModel `bun:"table:debts,alias:d" json:"-" msgpack:"-"`

	ID          uuid.UUID       `bun:"id,pk,type:uuid" json:"id" msgpack:"id"`
	UserID      uuid.UUID       `bun:"user_id,type:uuid,notnull" json:"user_id" msgpack:"user_id"`
	Description string          `bun:"description,notnull" json:"description" msgpack:"description"`
	Amount      decimal.Decimal `bun:"amount,type:numeric(18,2),notnull" json:"amount" msgpack:"amount"`
	DueDate     time.Time       `bun:"due_date,notnull" json:"due_date" msgpack:"due_date"`
	Paid        bool            `bun:"paid,notnull" json:"paid" msgpack:"paid"`
	PaidAt      *time.Time      `bun:"paid_at,nullzero" json:"paid_at,omitempty" msgpack:"paid_at,omitempty"`
	CreatedAt   time.Time       `bun:"created_at,notnull" json:"created_at" msgpack:"created_at"`
	ModifiedAt  *time.Time      `bun:"modified_at,nullzero" json:"modified_at,omitempty" msgpack:"modified_at,omitempty"`
}

// New builds an unpaid debt with a fresh identifier.
func New(userID uuid.UUID, description string, amount decimal.Decimal, dueDate, now time.Time) *Debt {
	return &Debt{
		ID:          uuid.New(),
		UserID:      userID,
		Description: description,
		Amount:      amount,
		DueDate:     dueDate,
		CreatedAt:   now.UTC(),
	}
}

// MarkPaid flags the debt as paid at the given instant. Paying twice keeps the first timestamp.
func (d *Debt) MarkPaid(at time.Time) {
	if d.Paid {
		return
	}
	at = at.UTC()
	d.Paid = true
	d.PaidAt = &at
	d.ModifiedAt = &at
}

// MarkUnpaid reverts a payment.
func (d *Debt) MarkUnpaid(at time.Time) {
	if !d.Paid {
		return
	}
	at = at.UTC()
	d.Paid = false
	d.PaidAt = nil
	d.ModifiedAt = &at
}

// Validate checks the record invariants.
func (d Debt) Validate() error {
	if d.UserID == uuid.Nil {
		return invalid("user_id", "is required")
	}
	if d.Amount.IsNegative() {
		return invalid("amount", "must not be negative")
	}
	if d.DueDate.IsZero() {
		return invalid("due_date", "is required")
	}
	if d.Paid && d.PaidAt == nil {
		return invalid("paid_at", "must be set when paid")
	}
	if !d.Paid && d.PaidAt != nil {
		return invalid("paid_at", "must be empty when unpaid")
	}
	return nil
}

// IsOverdue reports whether the debt is unpaid and due on a day strictly before asOf.
// Both sides are compared as UTC calendar days.
func (d Debt) IsOverdue(asOf time.Time) bool {
	if d.Paid {
		return false
	}
	return Day(d.DueDate).Before(Day(asOf))
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// User is the projection of a user record the summaries need.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u" json:"-" msgpack:"-"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id" msgpack:"id"`
	Name      string    `bun:"full_name,notnull" json:"name" msgpack:"name"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at" msgpack:"created_at"`
}
