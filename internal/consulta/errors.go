package consulta

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/artepuradesign/apipainellovable/internal/ledger"
	"github.com/artepuradesign/apipainellovable/internal/model"
)

var (
	// ErrNoSession rejects a search made without a session token.
	ErrNoSession = eris.New("consulta: no active session")
	// ErrBusy is returned when Run is called while another Run is in
	// progress on the same Orchestrator.
	ErrBusy = eris.New("consulta: a search is already in progress")
)

// InsufficientFundsError rejects a search the user cannot pay for.
type InsufficientFundsError struct {
	Required  model.Money
	Available model.Money
	Shortfall model.Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: need %s, have %s (short %s)", e.Required, e.Available, e.Shortfall)
}

// Unwrap lets errors.Is match ledger.ErrInsufficientFunds.
func (e *InsufficientFundsError) Unwrap() error {
	return ledger.ErrInsufficientFunds
}

// ProviderError is a failed lookup: either a transport error (Err) or an
// error reported by the provider itself (Reported).
type ProviderError struct {
	Reported string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return "lookup provider: " + e.Err.Error()
	}
	if e.Reported == "" {
		return "lookup provider: request was not successful"
	}
	return "lookup provider: " + e.Reported
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
