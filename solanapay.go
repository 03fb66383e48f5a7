// Package solanapay implements Solana Pay: payment request URLs, the
// transfers that satisfy them, and the lookups that confirm them on-chain.
package solanapay

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/TrippyLeaf/solana-pay/clients"
	"github.com/TrippyLeaf/solana-pay/codec"
	"github.com/TrippyLeaf/solana-pay/logger"
	"github.com/TrippyLeaf/solana-pay/metrics"
	"github.com/TrippyLeaf/solana-pay/settlement"
	"github.com/TrippyLeaf/solana-pay/transfer"
	"github.com/TrippyLeaf/solana-pay/types"
	"github.com/TrippyLeaf/solana-pay/utils"
	"github.com/TrippyLeaf/solana-pay/verification"
)

const defaultTimeout = 30 * time.Second

// SolanaPay is the main struct that provides all Solana Pay functionality
type SolanaPay struct {
	client              clients.Client
	builder             *transfer.Builder
	verificationService *verification.VerificationService
	settlementService   *settlement.SettlementService
	config              *types.Config
	logger              logger.Logger
	metrics             metrics.Recorder
	timeout             time.Duration
}

// New creates a SolanaPay instance for the cluster described by config.
func New(config *types.Config, opts ...Option) (*SolanaPay, error) {
	if config == nil {
		return nil, types.Errorf(types.ErrCodeConfig, "config is required")
	}

	p := &SolanaPay{
		config:  config,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: defaultTimeout,
	}
	if config.DefaultTimeout > 0 {
		p.timeout = config.DefaultTimeout
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		if err := utils.ValidateStruct(&config.Client); err != nil {
			return nil, err
		}
		client, err := clients.NewSolanaClient(config.Client,
			clients.WithClientLogger(p.logger),
			clients.WithClientMetrics(p.metrics),
		)
		if err != nil {
			return nil, err
		}
		p.client = client
	}

	network := p.client.GetNetwork()
	p.builder = transfer.NewBuilder(p.client, &config.Builder)
	p.verificationService = verification.NewVerificationService(p.client, p.timeout,
		verification.WithLogger(p.logger),
		verification.WithMetrics(p.metrics),
		verification.WithNetwork(network),
	)
	p.settlementService = settlement.NewSettlementService(p.client, &config.Settlement, p.timeout,
		settlement.WithLogger(p.logger),
		settlement.WithMetrics(p.metrics),
		settlement.WithNetwork(network),
	)

	return p, nil
}

// NewWithDefaults creates a SolanaPay instance against the public endpoint of network.
func NewWithDefaults(network types.Network, opts ...Option) (*SolanaPay, error) {
	return New(&types.Config{
		Client: types.ClientConfig{
			Network: network,
			RPCUrl:  network.RPCEndpoint(),
		},
		DefaultTimeout: defaultTimeout,
		LogLevel:       "info",
	}, opts...)
}

// Encode renders intent as a transfer request URL.
func (p *SolanaPay) Encode(intent *types.PaymentIntent) (string, error) {
	return codec.Encode(intent)
}

// Decode parses a transfer request URL.
func (p *SolanaPay) Decode(descriptor string) (*types.PaymentIntent, error) {
	intent, err := codec.Decode(descriptor)
	if err != nil {
		p.metrics.IncCounter(metrics.EventDescriptorInvalid, p.labels(""))
		p.logger.Debug("descriptor rejected", map[string]any{"error": err.Error()})
		return nil, err
	}
	p.metrics.IncCounter(metrics.EventDescriptorDecoded, p.labels(asset(intent)))
	return intent, nil
}

// BuildTransfer validates intent against the ledger and returns the
// instructions payer must sign.
func (p *SolanaPay) BuildTransfer(ctx context.Context, payer solana.PublicKey, intent *types.PaymentIntent) (*types.TransferRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	req, err := p.builder.Build(ctx, payer, intent)
	p.metrics.ObserveLatency("build_transfer", time.Since(start), p.labels(""))
	if err != nil {
		p.metrics.IncCounter(metrics.EventTransferRejected, p.labels(asset(intent)))
		p.logger.Warn("transfer rejected", map[string]any{
			"payer": payer.String(),
			"error": err.Error(),
		})
		return nil, err
	}

	p.metrics.IncCounter(metrics.EventTransferBuilt, p.labels(asset(intent)))
	p.logger.Debug("transfer built", map[string]any{
		"payer":        payer.String(),
		"recipient":    intent.Recipient.String(),
		"amount":       req.Amount,
		"instructions": len(req.Instructions),
	})
	return req, nil
}

// BuildTransaction builds the transfer and wraps it in an unsigned
// transaction with a fresh blockhash.
func (p *SolanaPay) BuildTransaction(ctx context.Context, payer solana.PublicKey, intent *types.PaymentIntent) (*solana.Transaction, error) {
	req, err := p.BuildTransfer(ctx, payer, intent)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	blockhash, err := p.client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := req.Transaction(blockhash)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeValidation, err, "failed to assemble transaction")
	}
	return tx, nil
}

// FindReference returns the oldest transaction carrying reference.
func (p *SolanaPay) FindReference(ctx context.Context, reference solana.PublicKey) (*types.SignatureInfo, error) {
	return p.verificationService.FindReference(ctx, reference, verification.FindReferenceOptions{})
}

// ValidateTransfer checks that the transaction sig satisfies intent.
func (p *SolanaPay) ValidateTransfer(ctx context.Context, sig solana.Signature, intent *types.PaymentIntent) (*types.VerificationResult, error) {
	return p.verificationService.ValidateTransfer(ctx, sig, intent)
}

// WaitForPayment polls for a payment carrying reference and validates it.
func (p *SolanaPay) WaitForPayment(ctx context.Context, reference solana.PublicKey, intent *types.PaymentIntent, maxAttempts int, interval time.Duration) (*types.VerificationResult, error) {
	return p.verificationService.WaitForPayment(ctx, reference, intent, maxAttempts, interval)
}

// Settle broadcasts a signed transaction and waits for confirmation.
func (p *SolanaPay) Settle(ctx context.Context, tx *solana.Transaction) (*types.SettlementResult, error) {
	return p.settlementService.Settle(ctx, tx)
}

// SettleBase64 is Settle for a base64 wire transaction.
func (p *SolanaPay) SettleBase64(ctx context.Context, txBase64 string) (*types.SettlementResult, error) {
	return p.settlementService.SettleBase64(ctx, txBase64)
}

// Network returns the cluster this instance talks to.
func (p *SolanaPay) Network() types.Network {
	return p.client.GetNetwork()
}

// Config returns the configuration the instance was created with.
func (p *SolanaPay) Config() *types.Config {
	return p.config
}

// Close closes the client connection
func (p *SolanaPay) Close() {
	p.client.Close()
}

func (p *SolanaPay) labels(asset string) map[string]string {
	return map[string]string{"network": p.client.GetNetwork().String(), "asset": asset}
}

func asset(intent *types.PaymentIntent) string {
	if intent == nil {
		return ""
	}
	if intent.IsNative() {
		return "SOL"
	}
	return intent.SPLToken.String()
}
