// Package transfer turns a decoded PaymentIntent into the ordered instruction
// list a wallet signs. Every ledger read is re-issued per call; nothing is cached.
package transfer

import (
	"context"
	"math"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/TrippyLeaf/solana-pay/clients"
	"github.com/TrippyLeaf/solana-pay/types"
	"github.com/TrippyLeaf/solana-pay/utils"
)

// Builder validates intents against ledger state and assembles transfers.
// It holds no mutable state and is safe for concurrent use.
type Builder struct {
	ledger               clients.Ledger
	lamportsPerSignature uint64
}

// NewBuilder returns a Builder reading from ledger. A nil config uses defaults.
func NewBuilder(ledger clients.Ledger, config *types.BuilderConfig) *Builder {
	fee := uint64(types.DefaultLamportsPerSignature)
	if config != nil && config.LamportsPerSignature > 0 {
		fee = config.LamportsPerSignature
	}
	return &Builder{
		ledger:               ledger,
		lamportsPerSignature: fee,
	}
}

// Build dispatches on the intent's asset.
func (b *Builder) Build(ctx context.Context, payer solana.PublicKey, intent *types.PaymentIntent) (*types.TransferRequest, error) {
	if intent == nil {
		return nil, types.Errorf(types.ErrCodeValidation, "intent is required")
	}
	if intent.IsNative() {
		return b.BuildNativeTransfer(ctx, payer, intent)
	}
	return b.BuildTokenTransfer(ctx, payer, intent)
}

// BuildNativeTransfer builds a SOL transfer from payer to the intent's recipient.
// Both accounts must already exist as plain system accounts.
func (b *Builder) BuildNativeTransfer(ctx context.Context, payer solana.PublicKey, intent *types.PaymentIntent) (*types.TransferRequest, error) {
	if intent == nil {
		return nil, types.Errorf(types.ErrCodeValidation, "intent is required")
	}
	if !intent.IsNative() {
		return nil, types.Errorf(types.ErrCodeValidation, "intent requests token %s, not SOL", intent.SPLToken)
	}

	payerInfo, err := b.systemAccount(ctx, payer, "payer", true)
	if err != nil {
		return nil, err
	}
	if _, err := b.systemAccount(ctx, intent.Recipient, "recipient", true); err != nil {
		return nil, err
	}

	if intent.Amount == nil {
		return nil, types.Errorf(types.ErrCodeAmountRequired, "amount must be resolved before building a transfer")
	}
	lamports, err := toBaseUnits(intent, types.NativeDecimals)
	if err != nil {
		return nil, err
	}

	reserve, err := b.ledger.GetMinimumBalanceForRentExemption(ctx, 0)
	if err != nil {
		return nil, err
	}
	if required, ok := sum(lamports, b.lamportsPerSignature, reserve); !ok || payerInfo.Lamports < required {
		return nil, types.Errorf(types.ErrCodeInsufficientFunds,
			"payer balance %d lamports cannot cover %d lamports plus %d fee and %d reserve",
			payerInfo.Lamports, lamports, b.lamportsPerSignature, reserve)
	}

	transferIx, err := withReferences(
		system.NewTransferInstruction(lamports, payer, intent.Recipient).Build(),
		intent.References,
	)
	if err != nil {
		return nil, err
	}

	instructions := []solana.Instruction{transferIx}
	if intent.Memo != nil {
		instructions = append(instructions, memoInstruction(payer, *intent.Memo))
	}

	return &types.TransferRequest{
		FeePayer:     payer,
		Instructions: instructions,
		References:   append([]solana.PublicKey(nil), intent.References...),
		Amount:       lamports,
		Decimals:     types.NativeDecimals,
	}, nil
}

// BuildTokenTransfer builds an SPL transfer between the associated token
// accounts of payer and the intent's recipient. A missing recipient token
// account is created in the same transaction at the payer's expense.
func (b *Builder) BuildTokenTransfer(ctx context.Context, payer solana.PublicKey, intent *types.PaymentIntent) (*types.TransferRequest, error) {
	if intent == nil {
		return nil, types.Errorf(types.ErrCodeValidation, "intent is required")
	}
	if intent.IsNative() {
		return nil, types.Errorf(types.ErrCodeValidation, "intent requests SOL, not a token")
	}
	mintKey := *intent.SPLToken

	if _, err := b.systemAccount(ctx, payer, "payer", true); err != nil {
		return nil, err
	}
	// The recipient wallet may be brand new; only its ownership is checked when it exists.
	if _, err := b.systemAccount(ctx, intent.Recipient, "recipient", false); err != nil {
		return nil, err
	}

	mint, err := b.ledger.GetMintInfo(ctx, mintKey)
	if err != nil {
		return nil, err
	}
	if mint == nil {
		return nil, types.Errorf(types.ErrCodeMintNotInitialized, "mint %s not found", mintKey)
	}
	if !mint.IsInitialized {
		return nil, types.Errorf(types.ErrCodeMintNotInitialized, "mint %s not initialized", mintKey)
	}

	if intent.Amount == nil {
		return nil, types.Errorf(types.ErrCodeAmountRequired, "amount must be resolved before building a transfer")
	}
	units, err := toBaseUnits(intent, mint.Decimals)
	if err != nil {
		return nil, err
	}

	payerATA, err := b.ledger.DeriveAssociatedAccount(payer, mintKey)
	if err != nil {
		return nil, err
	}
	recipientATA, err := b.ledger.DeriveAssociatedAccount(intent.Recipient, mintKey)
	if err != nil {
		return nil, err
	}

	source, err := b.ledger.GetTokenAccount(ctx, payerATA)
	if err != nil {
		return nil, err
	}
	if err := checkTokenAccount(source, "payer", payer, mintKey); err != nil {
		return nil, err
	}
	if source.Amount < units {
		return nil, types.Errorf(types.ErrCodeInsufficientFunds,
			"payer token balance %d cannot cover %d", source.Amount, units)
	}

	destination, err := b.ledger.GetTokenAccount(ctx, recipientATA)
	if err != nil {
		return nil, err
	}
	createRecipientATA := destination == nil
	if !createRecipientATA {
		if err := checkTokenAccount(destination, "recipient", intent.Recipient, mintKey); err != nil {
			return nil, err
		}
	}

	required := b.lamportsPerSignature
	if createRecipientATA {
		rent, err := b.ledger.GetMinimumBalanceForRentExemption(ctx, types.TokenAccountSize)
		if err != nil {
			return nil, err
		}
		var ok bool
		if required, ok = sum(required, rent); !ok {
			return nil, types.Errorf(types.ErrCodeInsufficientFunds, "fee overflows")
		}
	}
	balance, err := b.ledger.GetBalance(ctx, payer)
	if err != nil {
		return nil, err
	}
	if balance < required {
		return nil, types.Errorf(types.ErrCodeInsufficientFunds,
			"payer balance %d lamports cannot cover %d in fees and rent", balance, required)
	}

	transferIx, err := withReferences(
		token.NewTransferCheckedInstruction(units, mint.Decimals, payerATA, mintKey, recipientATA, payer, nil).Build(),
		intent.References,
	)
	if err != nil {
		return nil, err
	}

	instructions := make([]solana.Instruction, 0, 3)
	if createRecipientATA {
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(payer, intent.Recipient, mintKey).Build())
	}
	instructions = append(instructions, transferIx)
	if intent.Memo != nil {
		instructions = append(instructions, memoInstruction(payer, *intent.Memo))
	}

	return &types.TransferRequest{
		FeePayer:                payer,
		Instructions:            instructions,
		References:              append([]solana.PublicKey(nil), intent.References...),
		Amount:                  units,
		Decimals:                mint.Decimals,
		SPLToken:                &mintKey,
		CreatesRecipientAccount: createRecipientATA,
	}, nil
}

// systemAccount loads address and checks it is a plain wallet. When required
// is false a missing account is not an error and nil is returned.
func (b *Builder) systemAccount(ctx context.Context, address solana.PublicKey, role string, required bool) (*types.AccountInfo, error) {
	info, err := b.ledger.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	if info == nil {
		if !required {
			return nil, nil
		}
		return nil, types.Errorf(types.ErrCodeAccountNotFound, "%s %s not found", role, address)
	}
	if !info.IsSystemAccount() {
		return nil, types.Errorf(types.ErrCodeInvalidAccountOwner,
			"%s %s is owned by %s, not the system program", role, address, info.Owner)
	}
	return info, nil
}

func checkTokenAccount(acct *types.TokenAccount, role string, owner, mint solana.PublicKey) error {
	if acct == nil || !acct.IsInitialized {
		return types.Errorf(types.ErrCodeAccountNotFound, "%s token account for mint %s not found", role, mint)
	}
	if acct.IsFrozen {
		return types.Errorf(types.ErrCodeAccountFrozen, "%s token account %s is frozen", role, acct.Address)
	}
	if !acct.Owner.Equals(owner) || !acct.Mint.Equals(mint) {
		return types.Errorf(types.ErrCodeInvalidAccountOwner,
			"%s token account %s does not belong to %s for mint %s", role, acct.Address, owner, mint)
	}
	return nil
}

// toBaseUnits checks the intent's amount against decimals and converts it.
func toBaseUnits(intent *types.PaymentIntent, decimals uint8) (uint64, error) {
	if err := utils.ValidatePrecision(*intent.Amount, decimals); err != nil {
		return 0, types.WrapError(types.ErrCodePrecisionMismatch, err, "amount decimals invalid")
	}
	units, err := utils.ToBaseUnits(*intent.Amount, decimals)
	if err != nil {
		return 0, types.WrapError(types.ErrCodeValidation, err, "amount invalid")
	}
	return units, nil
}

// withReferences appends each reference to ix as a read-only, non-signing key.
func withReferences(ix solana.Instruction, refs []solana.PublicKey) (solana.Instruction, error) {
	if len(refs) == 0 {
		return ix, nil
	}

	data, err := ix.Data()
	if err != nil {
		return nil, types.WrapError(types.ErrCodeValidation, err, "failed to encode instruction")
	}

	accounts := make(solana.AccountMetaSlice, 0, len(ix.Accounts())+len(refs))
	accounts = append(accounts, ix.Accounts()...)
	for _, ref := range refs {
		accounts = append(accounts, solana.NewAccountMeta(ref, false, false))
	}

	return solana.NewInstruction(ix.ProgramID(), accounts, data), nil
}

func memoInstruction(signer solana.PublicKey, memo string) solana.Instruction {
	return solana.NewInstruction(
		types.MemoProgramID,
		solana.AccountMetaSlice{solana.NewAccountMeta(signer, false, true)},
		[]byte(memo),
	)
}

func sum(values ...uint64) (uint64, bool) {
	var total uint64
	for _, v := range values {
		if v > math.MaxUint64-total {
			return 0, false
		}
		total += v
	}
	return total, true
}
