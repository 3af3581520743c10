package market

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x000000000000000000000000000000000000000a")
	bob   = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

func TestLedgerCreditDebit(t *testing.T) {
	l := NewLedger()

	assert.Equal(t, "0", l.BalanceOf(alice).String())

	l.Credit(alice, big.NewInt(500))
	l.Credit(alice, big.NewInt(250))
	assert.Equal(t, "750", l.BalanceOf(alice).String())
	assert.Equal(t, "0", l.BalanceOf(bob).String())

	require.NoError(t, l.Debit(alice, big.NewInt(700)))
	assert.Equal(t, "50", l.BalanceOf(alice).String())

	// Overdraft fails without partial effect.
	assert.ErrorIs(t, l.Debit(alice, big.NewInt(51)), ErrInsufficientFunds)
	assert.Equal(t, "50", l.BalanceOf(alice).String())

	assert.ErrorIs(t, l.Debit(bob, big.NewInt(1)), ErrInsufficientFunds)
}

func TestLedgerBalanceOfIsACopy(t *testing.T) {
	l := NewLedger()
	l.Credit(alice, big.NewInt(100))

	got := l.BalanceOf(alice)
	got.SetInt64(999_999)
	assert.Equal(t, "100", l.BalanceOf(alice).String())
}

func TestLedgerProceedsLifecycle(t *testing.T) {
	l := NewLedger()

	l.CreditProceeds(alice, big.NewInt(300))
	l.CreditProceeds(alice, big.NewInt(700))
	assert.Equal(t, "1000", l.ProceedsOf(alice).String())

	taken := l.TakeProceeds(alice)
	assert.Equal(t, "1000", taken.String())
	assert.Equal(t, "0", l.ProceedsOf(alice).String())

	// Take on an empty account is a zero, not a nil.
	empty := l.TakeProceeds(bob)
	require.NotNil(t, empty)
	assert.Equal(t, "0", empty.String())

	// Failed transfer path: restore puts the exact amount back.
	l.RestoreProceeds(alice, taken)
	assert.Equal(t, "1000", l.ProceedsOf(alice).String())
}

func TestLedgerPoolsAreSeparate(t *testing.T) {
	l := NewLedger()
	l.Credit(alice, big.NewInt(100))
	l.CreditProceeds(alice, big.NewInt(40))

	// Proceeds are not spendable until claimed.
	assert.ErrorIs(t, l.Debit(alice, big.NewInt(120)), ErrInsufficientFunds)
	assert.Equal(t, "100", l.BalanceOf(alice).String())
	assert.Equal(t, "40", l.ProceedsOf(alice).String())
}
