package verification

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/TrippyLeaf/solana-pay/clients"
	"github.com/TrippyLeaf/solana-pay/logger"
	"github.com/TrippyLeaf/solana-pay/metrics"
	"github.com/TrippyLeaf/solana-pay/types"
	"github.com/TrippyLeaf/solana-pay/utils"
)

// maxSignaturesPerPage is the RPC node's cap for getSignaturesForAddress.
const maxSignaturesPerPage = 1000

// VerificationService locates payments by reference and checks them against
// the intent that requested them.
type VerificationService struct {
	reader  clients.TransactionReader
	network types.Network
	timeout time.Duration
	logger  logger.Logger
	metrics metrics.Recorder
}

// Option customizes a VerificationService.
type Option func(*VerificationService)

func WithLogger(l logger.Logger) Option {
	return func(s *VerificationService) { s.logger = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *VerificationService) { s.metrics = r }
}

func WithNetwork(n types.Network) Option {
	return func(s *VerificationService) { s.network = n }
}

// NewVerificationService creates a new verification service
func NewVerificationService(reader clients.TransactionReader, timeout time.Duration, opts ...Option) *VerificationService {
	s := &VerificationService{
		reader:  reader,
		timeout: timeout,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindReferenceOptions narrows a reference search.
type FindReferenceOptions struct {
	// Before starts the search below this signature.
	Before solana.Signature
	// Limit caps the page size. Zero means the RPC maximum.
	Limit int
}

// FindReference returns the oldest successful transaction that carries
// reference as an account key. The reference's history is paged back to its
// first entry.
func (s *VerificationService) FindReference(ctx context.Context, reference solana.PublicKey, opts FindReferenceOptions) (*types.SignatureInfo, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	limit := opts.Limit
	if limit <= 0 || limit > maxSignaturesPerPage {
		limit = maxSignaturesPerPage
	}

	var oldest *types.SignatureInfo
	before := opts.Before
	for {
		sigs, err := s.reader.GetSignaturesForAddress(ctx, reference, before, limit)
		if err != nil {
			return nil, err
		}
		if len(sigs) == 0 {
			break
		}

		// Failed transactions carry the reference but paid nothing.
		for i := len(sigs) - 1; i >= 0; i-- {
			if !sigs[i].Failed {
				found := sigs[i]
				oldest = &found
				break
			}
		}
		if len(sigs) < limit {
			break
		}
		before = sigs[len(sigs)-1].Signature
	}

	if oldest == nil {
		return nil, types.Errorf(types.ErrCodeReferenceNotFound, "no transaction references %s", reference)
	}

	s.metrics.IncCounter(metrics.EventReferenceFound, s.labels(""))
	s.logger.Debug("reference found", map[string]any{
		"reference": reference.String(),
		"signature": oldest.Signature.String(),
		"slot":      oldest.Slot,
	})
	return oldest, nil
}

// ValidateTransfer fetches sig and checks that it paid intent in full: the
// recipient's balance grew by at least the requested amount, every reference
// is attached to the transfer, and the memo matches.
//
// A transaction that exists but does not satisfy the intent yields a result
// with IsValid false. Errors are reserved for failed queries and bad input.
func (s *VerificationService) ValidateTransfer(ctx context.Context, sig solana.Signature, intent *types.PaymentIntent) (*types.VerificationResult, error) {
	if intent == nil {
		return nil, types.Errorf(types.ErrCodeValidation, "intent is required")
	}
	if intent.Amount == nil {
		return nil, types.Errorf(types.ErrCodeAmountRequired, "cannot validate a transfer without an amount")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.reader.GetConfirmedTransaction(ctx, sig)
	if err != nil {
		return nil, err
	}

	result := s.check(tx, sig, intent)
	asset := assetLabel(intent)
	if result.IsValid {
		s.metrics.IncCounter(metrics.EventPaymentValid, s.labels(asset))
		s.logger.Info("payment validated", map[string]any{
			"signature": sig.String(),
			"recipient": intent.Recipient.String(),
			"amount":    result.Amount.String(),
			"asset":     asset,
		})
	} else {
		s.metrics.IncCounter(metrics.EventPaymentInvalid, s.labels(asset))
		s.logger.Warn("payment invalid", map[string]any{
			"signature": sig.String(),
			"reason":    result.InvalidReason,
		})
	}
	return result, nil
}

// WaitForPayment polls for a transaction carrying reference and validates
// it against intent. It gives up after maxAttempts lookups.
func (s *VerificationService) WaitForPayment(
	ctx context.Context,
	reference solana.PublicKey,
	intent *types.PaymentIntent,
	maxAttempts int,
	retryDelay time.Duration,
) (*types.VerificationResult, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		found, err := s.FindReference(ctx, reference, FindReferenceOptions{})
		if err != nil {
			lastErr = err
			// Not found yet and transient RPC failures are both worth another try.
			continue
		}

		return s.ValidateTransfer(ctx, found.Signature, intent)
	}

	if lastErr == nil {
		lastErr = types.ErrReferenceNotFound
	}
	return nil, fmt.Errorf("payment not found after %d attempts: %w", maxAttempts, lastErr)
}

func (s *VerificationService) check(tx *types.ConfirmedTransaction, sig solana.Signature, intent *types.PaymentIntent) *types.VerificationResult {
	if tx == nil {
		return invalid(ReasonTransactionNotFound)
	}
	if tx.Failed {
		return invalid(ReasonTransactionFailed)
	}

	var (
		received uint64
		decimals uint8
		reason   string
	)
	if intent.IsNative() {
		decimals = types.NativeDecimals
		received, reason = nativeReceived(tx, intent.Recipient)
	} else {
		received, decimals, reason = tokenReceived(tx, intent.Recipient, *intent.SPLToken)
	}
	if reason != "" {
		return invalid(reason)
	}

	if err := utils.ValidatePrecision(*intent.Amount, decimals); err != nil {
		return invalid(ReasonAmountPrecision)
	}
	expected, err := utils.ToBaseUnits(*intent.Amount, decimals)
	if err != nil {
		return invalid(ReasonAmountPrecision)
	}
	if received < expected {
		return invalid(ReasonAmountNotTransferred)
	}

	if len(intent.References) > 0 && !hasReferences(tx, intent) {
		return invalid(ReasonReferenceMissing)
	}
	if intent.Memo != nil && !hasMemo(tx, *intent.Memo) {
		return invalid(ReasonMemoMismatch)
	}

	amount := utils.FromBaseUnits(received, decimals)
	return &types.VerificationResult{
		IsValid:   true,
		Signature: sig.String(),
		Slot:      tx.Slot,
		Amount:    &amount,
		Token:     assetLabel(intent),
		Recipient: intent.Recipient.String(),
		Timestamp: tx.BlockTime,
	}
}

func nativeReceived(tx *types.ConfirmedTransaction, recipient solana.PublicKey) (uint64, string) {
	idx := tx.AccountIndex(recipient)
	if idx < 0 {
		return 0, ReasonRecipientNotFound
	}
	if idx >= len(tx.PreBalances) || idx >= len(tx.PostBalances) {
		return 0, ReasonMissingMeta
	}
	pre, post := tx.PreBalances[idx], tx.PostBalances[idx]
	if post < pre {
		return 0, ReasonAmountNotTransferred
	}
	return post - pre, ""
}

func tokenReceived(tx *types.ConfirmedTransaction, recipient, mint solana.PublicKey) (uint64, uint8, string) {
	ata, err := clients.DeriveAssociatedAccount(recipient, mint)
	if err != nil {
		return 0, 0, ReasonRecipientNotFound
	}
	idx := tx.AccountIndex(ata)
	if idx < 0 {
		return 0, 0, ReasonRecipientNotFound
	}

	post, ok := findTokenBalance(tx.PostTokenBalances, idx, mint)
	if !ok {
		return 0, 0, ReasonMissingMeta
	}
	// A token account created in this transaction has no pre balance.
	var preAmount uint64
	if pre, ok := findTokenBalance(tx.PreTokenBalances, idx, mint); ok {
		preAmount = pre.Amount
	}
	if post.Amount < preAmount {
		return 0, 0, ReasonAmountNotTransferred
	}
	return post.Amount - preAmount, post.Decimals, ""
}

func findTokenBalance(balances []types.TokenBalance, idx int, mint solana.PublicKey) (types.TokenBalance, bool) {
	for _, b := range balances {
		if b.AccountIndex == idx && b.Mint.Equals(mint) {
			return b, true
		}
	}
	return types.TokenBalance{}, false
}

// hasReferences reports whether one transfer instruction carries every reference.
func hasReferences(tx *types.ConfirmedTransaction, intent *types.PaymentIntent) bool {
	program := solana.SystemProgramID
	if !intent.IsNative() {
		program = solana.TokenProgramID
	}

	for _, ix := range tx.Instructions {
		if !ix.ProgramID.Equals(program) {
			continue
		}
		if containsAll(ix.Accounts, intent.References) {
			return true
		}
	}
	return false
}

func containsAll(keys, want []solana.PublicKey) bool {
	for _, w := range want {
		found := false
		for _, k := range keys {
			if k.Equals(w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func hasMemo(tx *types.ConfirmedTransaction, memo string) bool {
	for _, ix := range tx.Instructions {
		if ix.ProgramID.Equals(types.MemoProgramID) && bytes.Equal(ix.Data, []byte(memo)) {
			return true
		}
	}
	return false
}

func invalid(reason string) *types.VerificationResult {
	return &types.VerificationResult{IsValid: false, InvalidReason: reason}
}

func assetLabel(intent *types.PaymentIntent) string {
	if intent.IsNative() {
		return "SOL"
	}
	return intent.SPLToken.String()
}

func (s *VerificationService) labels(asset string) map[string]string {
	return map[string]string{"network": s.network.String(), "asset": asset}
}

func (s *VerificationService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
