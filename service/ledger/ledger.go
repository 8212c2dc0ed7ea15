package ledger

import (
	"math/big"
	"sync"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/domain"
)

// InMemLedger is the reference implementation of the value-transfer
// boundary: a custodial balance book per (token, account). Transfers are
// atomic; on any failure no balance moves.
type InMemLedger struct {
	mu       sync.Mutex
	balances map[domain.Address]map[domain.Address]*big.Int
}

func New() *InMemLedger {
	return &InMemLedger{
		balances: map[domain.Address]map[domain.Address]*big.Int{},
	}
}

func (l *InMemLedger) balanceOf(token, account domain.Address) *big.Int {
	accounts, ok := l.balances[token.ToLower()]
	if !ok {
		return new(big.Int)
	}
	bal, ok := accounts[account.ToLower()]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

func (l *InMemLedger) setBalance(token, account domain.Address, amount *big.Int) {
	accounts, ok := l.balances[token.ToLower()]
	if !ok {
		accounts = map[domain.Address]*big.Int{}
		l.balances[token.ToLower()] = accounts
	}
	accounts[account.ToLower()] = new(big.Int).Set(amount)
}

func (l *InMemLedger) BalanceOf(c ctx.Ctx, token, account domain.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceOf(token, account), nil
}

func (l *InMemLedger) Transfer(c ctx.Ctx, token, from, to domain.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return domain.ErrPaymentMismatch
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fromBal := l.balanceOf(token, from)
	if fromBal.Cmp(amount) < 0 {
		c.WithFields(log.Fields{
			"token":   token,
			"from":    from,
			"balance": fromBal.String(),
			"amount":  amount.String(),
		}).Warn("transfer rejected")
		return domain.ErrInsufficientFunds
	}
	l.setBalance(token, from, fromBal.Sub(fromBal, amount))
	toBal := l.balanceOf(token, to)
	l.setBalance(token, to, toBal.Add(toBal, amount))
	return nil
}

// Deposit credits an account. Used by the funding surface and by tests to
// seed balances.
func (l *InMemLedger) Deposit(c ctx.Ctx, token, account domain.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return domain.ErrPaymentMismatch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceOf(token, account)
	l.setBalance(token, account, bal.Add(bal, amount))
	return nil
}
