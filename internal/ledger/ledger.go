// Package ledger decides how a consultation is paid for across the plan and
// wallet credit pools.
package ledger

import (
	"github.com/rotisserie/eris"

	"github.com/artepuradesign/apipainellovable/internal/model"
)

// ErrInsufficientFunds is returned by Charge when the pools cannot cover the
// price. Use Shortfall for the missing amount.
var ErrInsufficientFunds = eris.New("ledger: insufficient funds")

// CanAfford reports whether state can pay price. Plan credit alone or the
// combined pools may cover it.
func CanAfford(state model.BalanceState, price model.Money) bool {
	return state.PlanCredit >= price || state.Total() >= price
}

// Shortfall returns how much is missing to pay price, or zero.
func Shortfall(state model.BalanceState, price model.Money) model.Money {
	if d := price - state.Total(); d > 0 {
		return d
	}
	return 0
}

// Charge projects paying price from state, plan credit first. It is a pure
// local computation; the authoritative balance is reloaded separately.
func Charge(state model.BalanceState, price model.Money) (model.ChargeDecision, model.BalanceState, error) {
	if price < 0 {
		return model.ChargeDecision{}, state, eris.Errorf("ledger: negative price %d", price)
	}
	if !CanAfford(state, price) {
		return model.ChargeDecision{}, state, eris.Wrapf(ErrInsufficientFunds,
			"need %s, have %s", price, state.Total())
	}

	if state.PlanCredit >= price {
		return model.ChargeDecision{Pool: model.PoolPlanOnly, FromPlan: price},
			model.BalanceState{PlanCredit: state.PlanCredit - price, WalletCredit: state.WalletCredit}, nil
	}

	fromPlan := max(state.PlanCredit, 0)
	fromWallet := price - fromPlan
	pool := model.PoolMixed
	if fromPlan == 0 {
		pool = model.PoolWalletOnly
	}
	return model.ChargeDecision{Pool: pool, FromPlan: fromPlan, FromWallet: fromWallet},
		model.BalanceState{PlanCredit: state.PlanCredit - fromPlan, WalletCredit: state.WalletCredit - fromWallet}, nil
}
