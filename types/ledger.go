package types

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// AccountInfo is the subset of an on-chain account the builder inspects.
type AccountInfo struct {
	Address    solana.PublicKey
	Owner      solana.PublicKey
	Lamports   uint64
	Executable bool
	Data       []byte
}

// IsSystemAccount reports whether the account is a plain wallet: owned by
// the System Program and not a program itself.
func (a *AccountInfo) IsSystemAccount() bool {
	return a.Owner.Equals(solana.SystemProgramID) && !a.Executable
}

// MintInfo describes an SPL token mint.
type MintInfo struct {
	Address       solana.PublicKey
	Decimals      uint8
	Supply        uint64
	IsInitialized bool
}

// TokenAccount is a decoded SPL token account.
type TokenAccount struct {
	Address       solana.PublicKey
	Mint          solana.PublicKey
	Owner         solana.PublicKey
	Amount        uint64
	IsInitialized bool
	IsFrozen      bool
}

// TokenBalance is a token account balance snapshot from transaction metadata.
type TokenBalance struct {
	AccountIndex int
	Mint         solana.PublicKey
	Owner        *solana.PublicKey
	Amount       uint64
	Decimals     uint8
}

// ConfirmedInstruction is a compiled instruction with its keys resolved.
type ConfirmedInstruction struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
}

// ConfirmedTransaction is a landed transaction together with its balance metadata.
type ConfirmedTransaction struct {
	Signature         solana.Signature
	Slot              uint64
	BlockTime         *time.Time
	Failed            bool
	AccountKeys       []solana.PublicKey
	Instructions      []ConfirmedInstruction
	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// AccountIndex returns the position of key in the transaction's account list, or -1.
func (t *ConfirmedTransaction) AccountIndex(key solana.PublicKey) int {
	for i, k := range t.AccountKeys {
		if k.Equals(key) {
			return i
		}
	}
	return -1
}
