package debt

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserDebtSummary is the aggregate position of one user. It is replaced wholesale on
// recomputation and never patched.
type UserDebtSummary struct {
	UserID        uuid.UUID       `json:"user_id" msgpack:"user_id"`
	UserName      string          `json:"user_name" msgpack:"user_name"`
	TotalAmount   decimal.Decimal `json:"total_amount" msgpack:"total_amount"`
	TotalDebts    int             `json:"total_debts" msgpack:"total_debts"`
	PaidDebts     int             `json:"paid_debts" msgpack:"paid_debts"`
	OverdueDebts  int             `json:"overdue_debts" msgpack:"overdue_debts"`
	OverdueAmount decimal.Decimal `json:"overdue_amount" msgpack:"overdue_amount"`
	ComputedAt    time.Time       `json:"computed_at" msgpack:"computed_at"`
}

// UnpaidDebts is the number of debts not yet paid.
func (s UserDebtSummary) UnpaidDebts() int {
	return s.TotalDebts - s.PaidDebts
}

// SystemDebtSummary aggregates every user with at least one debt.
//
// Debts whose owner is not among the known users are not attributed to any
// user summary but still count towards the system totals; they are reported in
// OrphanedDebts and OrphanedAmount so that
//
//	TotalAmount == Σ Users[i].TotalAmount + OrphanedAmount
//
// holds for every value the aggregation engine produces.
type SystemDebtSummary struct {
	Users          []UserDebtSummary `json:"users" msgpack:"users"`
	TotalAmount    decimal.Decimal   `json:"total_amount" msgpack:"total_amount"`
	TotalDebts     int               `json:"total_debts" msgpack:"total_debts"`
	OverdueDebts   int               `json:"overdue_debts" msgpack:"overdue_debts"`
	OrphanedDebts  int               `json:"orphaned_debts" msgpack:"orphaned_debts"`
	OrphanedAmount decimal.Decimal   `json:"orphaned_amount" msgpack:"orphaned_amount"`
	ComputedAt     time.Time         `json:"computed_at" msgpack:"computed_at"`
}

// User returns the summary for id, if the system summary contains one.
func (s SystemDebtSummary) User(id uuid.UUID) (UserDebtSummary, bool) {
	for _, u := range s.Users {
		if u.UserID == id {
			return u, true
		}
	}
	return UserDebtSummary{}, false
}

// MaxPageSize is the largest page a listing request may ask for.
const MaxPageSize = 500

// Page is one page of a user's raw debts ordered by due date, newest first.
type Page struct {
	Items      []Debt `json:"items"`
	PageNumber int    `json:"page_number"`
	PageSize   int    `json:"page_size"`
	TotalCount int    `json:"total_count"`
}

// NewPage assembles page metadata for items read at the given position.
func NewPage(items []Debt, pageNumber, pageSize, totalCount int) Page {
	if items == nil {
		items = []Debt{}
	}
	return Page{
		Items:      items,
		PageNumber: pageNumber,
		PageSize:   pageSize,
		TotalCount: totalCount,
	}
}

// TotalPages is ceil(TotalCount / PageSize).
func (p Page) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}

// HasPreviousPage reports whether a page precedes this one.
func (p Page) HasPreviousPage() bool {
	return p.PageNumber > 1
}

// HasNextPage reports whether a page follows this one.
func (p Page) HasNextPage() bool {
	return p.PageNumber < p.TotalPages()
}
