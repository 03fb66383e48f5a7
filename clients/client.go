package clients

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/TrippyLeaf/solana-pay/types"
)

// Ledger answers the read-only account queries the transfer builder needs.
// GetAccountInfo, GetMintInfo and GetTokenAccount return (nil, nil) when the
// account does not exist; any error is a failed query, not a missing account.
type Ledger interface {
	GetAccountInfo(ctx context.Context, address solana.PublicKey) (*types.AccountInfo, error)
	GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error)
	GetMintInfo(ctx context.Context, mint solana.PublicKey) (*types.MintInfo, error)
	GetTokenAccount(ctx context.Context, address solana.PublicKey) (*types.TokenAccount, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error)
	DeriveAssociatedAccount(owner, mint solana.PublicKey) (solana.PublicKey, error)
}

// TransactionReader reads confirmed history, used to locate payments by reference.
type TransactionReader interface {
	// GetSignaturesForAddress returns signatures newest first. A zero before
	// starts from the most recent transaction.
	GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, before solana.Signature, limit int) ([]types.SignatureInfo, error)
	GetConfirmedTransaction(ctx context.Context, sig solana.Signature) (*types.ConfirmedTransaction, error)
}

// Broadcaster submits signed transactions and reports their status.
type Broadcaster interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	// GetSignatureStatus returns nil when the cluster has not seen sig yet.
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*types.SignatureStatus, error)
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// Client is the full cluster surface used by the module.
type Client interface {
	Ledger
	TransactionReader
	Broadcaster
	GetNetwork() types.Network
	Close()
}

// AccountExists reports whether address holds an account on the ledger.
func AccountExists(ctx context.Context, ledger Ledger, address solana.PublicKey) (bool, error) {
	info, err := ledger.GetAccountInfo(ctx, address)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}
