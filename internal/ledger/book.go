package ledger

import (
	"sync"
	"time"

	"github.com/artepuradesign/apipainellovable/internal/model"
)

// Book holds the two views of a user's balance: the optimistic projection
// made right after a charge, and the last value read from the balance
// service. Whichever arrived last is current; an authoritative value always
// replaces a projection, it is never merged with it.
type Book struct {
	mu sync.Mutex

	projected     model.BalanceState
	authoritative model.BalanceState
	authAt        time.Time
	hasAuth       bool
	hasProjection bool

	nowFunc func() time.Time
}

// NewBook starts a book from an authoritative balance.
func NewBook(initial model.BalanceState) *Book {
	b := &Book{nowFunc: time.Now}
	b.Reconcile(initial)
	return b
}

// Project records the local post-charge balance.
func (b *Book) Project(state model.BalanceState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.projected = state
	b.hasProjection = true
}

// Reconcile records a balance read from the balance service. It supersedes
// any earlier projection.
func (b *Book) Reconcile(state model.BalanceState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authoritative = state
	b.authAt = b.nowFunc()
	b.hasAuth = true
	b.hasProjection = false
}

// Current returns the balance that should be shown now.
func (b *Book) Current() model.BalanceState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hasProjection {
		return b.projected
	}
	return b.authoritative
}

// IsProvisional reports whether Current is a projection not yet confirmed
// by the balance service.
func (b *Book) IsProvisional() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hasProjection
}

// Authoritative returns the last balance read from the service and when it
// arrived.
func (b *Book) Authoritative() (model.BalanceState, time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.authoritative, b.authAt, b.hasAuth
}
