package token

import (
	"errors"
	"fmt"
	"math/big"

	"checksvault/storage"
)

// Token metadata for the fungible unit issued against deposited checks.
const (
	Name     = "Checks"
	Symbol   = "CHECKS"
	Decimals = 18
)

var (
	// ErrInsufficientBalance is returned when a debit or transfer exceeds the
	// holder's balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("token: invalid amount")
)

var (
	balancePrefix = []byte("token/balance/")
	supplyKey     = []byte("token/supply")
)

// Ledger tracks fungible balances and the global issued counter. Accounts are
// implicit: a balance record appears on first credit and persists at whatever
// value later debits leave, including zero.
type Ledger struct {
	state storage.State
}

// NewLedger constructs a ledger bound to the provided state backend.
func NewLedger(state storage.State) *Ledger {
	return &Ledger{state: state}
}

// BalanceOf returns the balance held by addr. Unknown accounts report zero.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNotInitialised
	}
	return l.loadBalance(addr)
}

// TotalIssued returns the global issued counter, equal to the sum of all
// account balances.
func (l *Ledger) TotalIssued() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNotInitialised
	}
	supply := new(big.Int)
	if _, err := l.state.KVGet(supplyKey, supply); err != nil {
		return nil, err
	}
	return supply, nil
}

// Credit mints amount to addr, increasing the issued counter by the same.
// The supply ceiling is the caller's invariant to enforce before issuing.
func (l *Ledger) Credit(addr [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNotInitialised
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	balance, err := l.loadBalance(addr)
	if err != nil {
		return err
	}
	if err := l.storeBalance(addr, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	supply, err := l.TotalIssued()
	if err != nil {
		return err
	}
	return l.state.KVPut(supplyKey, new(big.Int).Add(supply, amount))
}

// Debit burns amount from addr, decreasing the issued counter by the same.
func (l *Ledger) Debit(addr [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNotInitialised
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	balance, err := l.loadBalance(addr)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance, amount)
	}
	if err := l.storeBalance(addr, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	supply, err := l.TotalIssued()
	if err != nil {
		return err
	}
	return l.state.KVPut(supplyKey, new(big.Int).Sub(supply, amount))
}

// Transfer moves amount between two holders without touching the issued
// counter.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNotInitialised
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if from == to || amount.Sign() == 0 {
		return nil
	}
	fromBalance, err := l.loadBalance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBalance, amount)
	}
	toBalance, err := l.loadBalance(to)
	if err != nil {
		return err
	}
	if err := l.storeBalance(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.storeBalance(to, new(big.Int).Add(toBalance, amount))
}

var errNotInitialised = errors.New("token: ledger not initialised")

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (l *Ledger) loadBalance(addr [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	if _, err := l.state.KVGet(balanceKey(addr), balance); err != nil {
		return nil, err
	}
	return balance, nil
}

func (l *Ledger) storeBalance(addr [20]byte, balance *big.Int) error {
	return l.state.KVPut(balanceKey(addr), balance)
}

func balanceKey(addr [20]byte) []byte {
	buf := make([]byte, len(balancePrefix)+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], addr[:])
	return buf
}
