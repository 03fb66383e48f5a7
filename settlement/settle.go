package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/TrippyLeaf/solana-pay/clients"
	"github.com/TrippyLeaf/solana-pay/logger"
	"github.com/TrippyLeaf/solana-pay/metrics"
	"github.com/TrippyLeaf/solana-pay/types"
	"github.com/TrippyLeaf/solana-pay/utils"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxAttempts  = 30
)

// SettlementService broadcasts wallet-signed transactions and waits for the
// cluster to confirm them.
type SettlementService struct {
	broadcaster  clients.Broadcaster
	network      types.Network
	target       rpc.ConfirmationStatusType
	pollInterval time.Duration
	maxAttempts  int
	timeout      time.Duration
	logger       logger.Logger
	metrics      metrics.Recorder
}

// Option customizes a SettlementService.
type Option func(*SettlementService)

func WithLogger(l logger.Logger) Option {
	return func(s *SettlementService) { s.logger = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *SettlementService) { s.metrics = r }
}

func WithNetwork(n types.Network) Option {
	return func(s *SettlementService) { s.network = n }
}

// WithTargetStatus sets the confirmation level Settle waits for. Defaults to finalized.
func WithTargetStatus(status rpc.ConfirmationStatusType) Option {
	return func(s *SettlementService) { s.target = status }
}

// NewSettlementService creates a new settlement service. A nil config uses
// the default polling schedule.
func NewSettlementService(broadcaster clients.Broadcaster, config *types.SettlementConfig, timeout time.Duration, opts ...Option) *SettlementService {
	s := &SettlementService{
		broadcaster:  broadcaster,
		target:       rpc.ConfirmationStatusFinalized,
		pollInterval: defaultPollInterval,
		maxAttempts:  defaultMaxAttempts,
		timeout:      timeout,
		logger:       logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
	}
	if config != nil {
		if config.PollInterval > 0 {
			s.pollInterval = config.PollInterval
		}
		if config.MaxAttempts > 0 {
			s.maxAttempts = config.MaxAttempts
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SettleBase64 decodes a base64 wire transaction and settles it.
func (s *SettlementService) SettleBase64(ctx context.Context, txBase64 string) (*types.SettlementResult, error) {
	tx, err := utils.DecodeBase64Tx(txBase64)
	if err != nil {
		return &types.SettlementResult{
			Success: false,
			Network: s.network,
			Error:   fmt.Sprintf("tx decode failed: %v", err),
		}, nil
	}
	return s.Settle(ctx, tx)
}

// Settle submits tx and polls its status until it reaches the target
// confirmation level, fails on-chain, or polling runs out.
//
// Outcomes on the chain are reported in the result. The returned error is
// non-nil only when the context ends first.
func (s *SettlementService) Settle(ctx context.Context, tx *solana.Transaction) (*types.SettlementResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := checkSigned(tx); err != nil {
		return s.fail("", err.Error()), nil
	}

	start := time.Now()
	sig, err := s.broadcaster.SendTransaction(ctx, tx)
	if err != nil {
		return s.fail("", fmt.Sprintf("broadcast failed: %v", err)), nil
	}

	fields := map[string]any{"signature": sig.String(), "network": s.network.String()}
	s.logger.Info("transaction broadcast", fields)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return s.fail(sig.String(), "transaction confirmation timed out"), ctx.Err()
		case <-ticker.C:
		}

		status, err := s.broadcaster.GetSignatureStatus(ctx, sig)
		if err != nil {
			s.logger.Debug("status poll failed", logger.With(fields, map[string]any{"error": err.Error(), "attempt": attempt}))
			continue
		}
		if status == nil {
			continue
		}
		if status.Err != nil {
			return s.fail(sig.String(), fmt.Sprintf("transaction failed: %v", status.Err)), nil
		}
		if !reached(rpc.ConfirmationStatusType(status.ConfirmationStatus), s.target) {
			continue
		}

		s.metrics.ObserveLatency("settle", time.Since(start), s.labels())
		s.metrics.IncCounter(metrics.EventSettled, s.labels())
		s.logger.Info("transaction confirmed", logger.With(fields, map[string]any{
			"slot":   status.Slot,
			"status": status.ConfirmationStatus,
		}))

		return &types.SettlementResult{
			Success:            true,
			Signature:          sig.String(),
			Slot:               status.Slot,
			ConfirmationStatus: status.ConfirmationStatus,
			Network:            s.network,
			Extra: types.ExtraData{
				"explorer": s.network.ExplorerURL(sig.String()),
			},
		}, nil
	}

	return s.fail(sig.String(), "transaction not confirmed after retries"), nil
}

func (s *SettlementService) fail(signature, reason string) *types.SettlementResult {
	s.metrics.IncCounter(metrics.EventSettleFailed, s.labels())
	s.logger.Warn("settlement failed", map[string]any{
		"signature": signature,
		"network":   s.network.String(),
		"reason":    reason,
	})
	return &types.SettlementResult{
		Success:   false,
		Signature: signature,
		Network:   s.network,
		Error:     reason,
	}
}

func (s *SettlementService) labels() map[string]string {
	return map[string]string{"network": s.network.String()}
}

// checkSigned rejects transactions the wallet has not fully signed.
func checkSigned(tx *solana.Transaction) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) < required {
		return fmt.Errorf("transaction has %d of %d required signatures", len(tx.Signatures), required)
	}
	for i := 0; i < required; i++ {
		if tx.Signatures[i] == (solana.Signature{}) {
			return fmt.Errorf("transaction signer %d has not signed", i)
		}
	}
	return nil
}

func rank(status rpc.ConfirmationStatusType) int {
	switch status {
	case rpc.ConfirmationStatusProcessed:
		return 1
	case rpc.ConfirmationStatusConfirmed:
		return 2
	case rpc.ConfirmationStatusFinalized:
		return 3
	}
	return 0
}

func reached(status, target rpc.ConfirmationStatusType) bool {
	return rank(status) >= rank(target) && rank(status) > 0
}
