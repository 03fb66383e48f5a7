package clients

import (
	"context"
	"strconv"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/TrippyLeaf/solana-pay/logger"
	"github.com/TrippyLeaf/solana-pay/metrics"
	"github.com/TrippyLeaf/solana-pay/types"
)

// SolanaClient implements Client over a JSON-RPC endpoint.
type SolanaClient struct {
	network    types.Network
	rpcURL     string
	commitment rpc.CommitmentType
	client     *rpc.Client
	logger     logger.Logger
	metrics    metrics.Recorder
}

var _ Client = (*SolanaClient)(nil)

// ClientOption customizes a SolanaClient.
type ClientOption func(*SolanaClient)

// WithClientLogger sets the logger used for RPC tracing.
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *SolanaClient) {
		c.logger = l
	}
}

// WithClientMetrics records per-method RPC latency.
func WithClientMetrics(r metrics.Recorder) ClientOption {
	return func(c *SolanaClient) {
		c.metrics = r
	}
}

// NewSolanaClient creates a client for network. An empty RPC URL falls back
// to the network's public endpoint.
func NewSolanaClient(config types.ClientConfig, opts ...ClientOption) (*SolanaClient, error) {
	if !config.Network.IsValid() {
		return nil, types.Errorf(types.ErrCodeConfig, "unsupported network: %s", config.Network)
	}

	rpcURL := config.RPCUrl
	if rpcURL == "" {
		rpcURL = config.Network.RPCEndpoint()
	}

	commitment := rpc.CommitmentConfirmed
	if config.Commitment != "" {
		commitment = rpc.CommitmentType(config.Commitment)
	}

	var client *rpc.Client
	if len(config.Headers) > 0 {
		client = rpc.NewWithHeaders(rpcURL, config.Headers)
	} else {
		client = rpc.New(rpcURL)
	}

	c := &SolanaClient{
		network:    config.Network,
		rpcURL:     rpcURL,
		commitment: commitment,
		client:     client,
		logger:     logger.NoopLogger{},
		metrics:    metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *SolanaClient) observe(method string, start time.Time, err error) {
	labels := map[string]string{"network": c.network.String()}
	c.metrics.ObserveLatency(method, time.Since(start), labels)
	if err != nil && !isNotFound(err) {
		c.metrics.IncCounter(metrics.EventRPCError, labels)
		c.logger.Warn("rpc call failed", map[string]any{
			"method":  method,
			"network": c.network.String(),
			"error":   err.Error(),
		})
	}
}

// GetAccountInfo fetches the raw account at address.
func (c *SolanaClient) GetAccountInfo(ctx context.Context, address solana.PublicKey) (info *types.AccountInfo, err error) {
	defer func(start time.Time) { c.observe(MethodGetAccountInfo, start, err) }(time.Now())

	out, err := c.client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, networkError(MethodGetAccountInfo, err)
	}
	if out == nil || out.Value == nil {
		return nil, nil
	}

	acct := out.Value
	info = &types.AccountInfo{
		Address:    address,
		Owner:      acct.Owner,
		Lamports:   acct.Lamports,
		Executable: acct.Executable,
	}
	if acct.Data != nil {
		info.Data = acct.Data.GetBinary()
	}
	return info, nil
}

// GetBalance returns the lamport balance of address.
func (c *SolanaClient) GetBalance(ctx context.Context, address solana.PublicKey) (balance uint64, err error) {
	defer func(start time.Time) { c.observe(MethodGetBalance, start, err) }(time.Now())

	out, err := c.client.GetBalance(ctx, address, c.commitment)
	if err != nil {
		return 0, networkError(MethodGetBalance, err)
	}
	return out.Value, nil
}

// GetMintInfo decodes the SPL mint at address. An account that exists but is
// not a token program mint fails with MINT_NOT_INITIALIZED.
func (c *SolanaClient) GetMintInfo(ctx context.Context, address solana.PublicKey) (*types.MintInfo, error) {
	info, err := c.GetAccountInfo(ctx, address)
	if err != nil || info == nil {
		return nil, err
	}
	if !isTokenProgram(info.Owner) {
		return nil, types.Errorf(types.ErrCodeMintNotInitialized, "account %s is not owned by the token program", address)
	}
	return DecodeMint(address, info.Data)
}

// GetTokenAccount decodes the SPL token account at address.
func (c *SolanaClient) GetTokenAccount(ctx context.Context, address solana.PublicKey) (*types.TokenAccount, error) {
	info, err := c.GetAccountInfo(ctx, address)
	if err != nil || info == nil {
		return nil, err
	}
	if !isTokenProgram(info.Owner) {
		return nil, types.Errorf(types.ErrCodeInvalidAccountOwner, "account %s is not owned by a token program", address)
	}
	return DecodeTokenAccount(address, info.Data)
}

// GetMinimumBalanceForRentExemption returns the rent-exempt reserve for an account of dataSize bytes.
func (c *SolanaClient) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (lamports uint64, err error) {
	defer func(start time.Time) { c.observe(MethodGetMinimumBalance, start, err) }(time.Now())

	lamports, err = c.client.GetMinimumBalanceForRentExemption(ctx, dataSize, c.commitment)
	if err != nil {
		return 0, networkError(MethodGetMinimumBalance, err)
	}
	return lamports, nil
}

// DeriveAssociatedAccount returns the associated token account of owner for mint.
func (c *SolanaClient) DeriveAssociatedAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	return DeriveAssociatedAccount(owner, mint)
}

// GetSignaturesForAddress lists transactions that touched address, newest first.
func (c *SolanaClient) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, before solana.Signature, limit int) (sigs []types.SignatureInfo, err error) {
	defer func(start time.Time) { c.observe(MethodGetSignatures, start, err) }(time.Now())

	opts := &rpc.GetSignaturesForAddressOpts{
		Before:     before,
		Commitment: c.commitment,
	}
	if limit > 0 {
		opts.Limit = &limit
	}

	out, err := c.client.GetSignaturesForAddressWithOpts(ctx, address, opts)
	if err != nil {
		return nil, networkError(MethodGetSignatures, err)
	}

	sigs = make([]types.SignatureInfo, 0, len(out))
	for _, s := range out {
		if s == nil {
			continue
		}
		info := types.SignatureInfo{
			Signature:          s.Signature,
			Slot:               s.Slot,
			Failed:             s.Err != nil,
			ConfirmationStatus: string(s.ConfirmationStatus),
		}
		if s.BlockTime != nil {
			t := s.BlockTime.Time()
			info.BlockTime = &t
		}
		sigs = append(sigs, info)
	}
	return sigs, nil
}

// GetConfirmedTransaction fetches a landed transaction with its balance metadata.
// It returns (nil, nil) when the cluster has no record of sig.
func (c *SolanaClient) GetConfirmedTransaction(ctx context.Context, sig solana.Signature) (confirmed *types.ConfirmedTransaction, err error) {
	defer func(start time.Time) { c.observe(MethodGetTransaction, start, err) }(time.Now())

	maxVersion := uint64(0)
	commitment := c.commitment
	if commitment == rpc.CommitmentProcessed {
		// getTransaction does not serve processed transactions.
		commitment = rpc.CommitmentConfirmed
	}

	out, err := c.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, networkError(MethodGetTransaction, err)
	}
	if out == nil || out.Transaction == nil {
		return nil, nil
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, types.WrapError(types.ErrCodeNetwork, err, "failed to decode transaction %s", sig)
	}

	return toConfirmedTransaction(sig, out, tx), nil
}

// SendTransaction submits a signed transaction.
func (c *SolanaClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (sig solana.Signature, err error) {
	defer func(start time.Time) { c.observe(MethodSendTransaction, start, err) }(time.Now())

	sig, err = c.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return solana.Signature{}, networkError(MethodSendTransaction, err)
	}

	c.logger.Debug("transaction submitted", map[string]any{
		"signature": sig.String(),
		"network":   c.network.String(),
	})
	return sig, nil
}

// GetSignatureStatus reports the cluster's view of sig.
func (c *SolanaClient) GetSignatureStatus(ctx context.Context, sig solana.Signature) (status *types.SignatureStatus, err error) {
	defer func(start time.Time) { c.observe(MethodGetSignatureStatuses, start, err) }(time.Now())

	out, err := c.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, networkError(MethodGetSignatureStatuses, err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return nil, nil
	}

	v := out.Value[0]
	return &types.SignatureStatus{
		Slot:               v.Slot,
		Confirmations:      v.Confirmations,
		ConfirmationStatus: string(v.ConfirmationStatus),
		Err:                v.Err,
	}, nil
}

// GetLatestBlockhash returns a recent blockhash for transaction assembly.
func (c *SolanaClient) GetLatestBlockhash(ctx context.Context) (hash solana.Hash, err error) {
	defer func(start time.Time) { c.observe(MethodGetLatestBlockhash, start, err) }(time.Now())

	out, err := c.client.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, networkError(MethodGetLatestBlockhash, err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, types.Errorf(types.ErrCodeNetwork, "%s returned no value", MethodGetLatestBlockhash)
	}
	return out.Value.Blockhash, nil
}

func (c *SolanaClient) GetNetwork() types.Network { return c.network }

func (c *SolanaClient) Close() {
	if c.client != nil {
		_ = c.client.Close()
	}
}

// DeriveAssociatedAccount computes the associated token account address for (owner, mint).
func DeriveAssociatedAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, types.WrapError(types.ErrCodeValidation, err, "cannot derive associated account for %s", owner)
	}
	return addr, nil
}

// DecodeMint parses SPL mint account data.
func DecodeMint(address solana.PublicKey, data []byte) (*types.MintInfo, error) {
	if len(data) != types.MintAccountSize {
		return nil, types.Errorf(types.ErrCodeMintNotInitialized, "account %s holds %d bytes, a mint holds %d", address, len(data), types.MintAccountSize)
	}
	var mint token.Mint
	if err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, types.WrapError(types.ErrCodeMintNotInitialized, err, "account %s is not a mint", address)
	}
	return &types.MintInfo{
		Address:       address,
		Decimals:      mint.Decimals,
		Supply:        mint.Supply,
		IsInitialized: mint.IsInitialized,
	}, nil
}

// DecodeTokenAccount parses SPL token account data.
func DecodeTokenAccount(address solana.PublicKey, data []byte) (*types.TokenAccount, error) {
	if len(data) != types.TokenAccountSize {
		return nil, types.Errorf(types.ErrCodeInvalidAccountOwner, "account %s holds %d bytes, a token account holds %d", address, len(data), types.TokenAccountSize)
	}
	var acct token.Account
	if err := acct.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, types.WrapError(types.ErrCodeInvalidAccountOwner, err, "account %s is not a token account", address)
	}
	return &types.TokenAccount{
		Address:       address,
		Mint:          acct.Mint,
		Owner:         acct.Owner,
		Amount:        acct.Amount,
		IsInitialized: acct.State != token.Uninitialized,
		IsFrozen:      acct.State == token.Frozen,
	}, nil
}

// Token-2022 accounts are rejected: their associated addresses derive
// from a different program id.
func isTokenProgram(owner solana.PublicKey) bool {
	return owner.Equals(solana.TokenProgramID)
}

func toConfirmedTransaction(sig solana.Signature, out *rpc.GetTransactionResult, tx *solana.Transaction) *types.ConfirmedTransaction {
	confirmed := &types.ConfirmedTransaction{
		Signature:   sig,
		Slot:        out.Slot,
		AccountKeys: append([]solana.PublicKey(nil), tx.Message.AccountKeys...),
	}
	if out.BlockTime != nil {
		t := out.BlockTime.Time()
		confirmed.BlockTime = &t
	}

	if meta := out.Meta; meta != nil {
		confirmed.Failed = meta.Err != nil
		confirmed.PreBalances = meta.PreBalances
		confirmed.PostBalances = meta.PostBalances
		// Lookup-table keys follow the static keys: writable first, then read-only.
		confirmed.AccountKeys = append(confirmed.AccountKeys, meta.LoadedAddresses.Writable...)
		confirmed.AccountKeys = append(confirmed.AccountKeys, meta.LoadedAddresses.ReadOnly...)
		confirmed.PreTokenBalances = toTokenBalances(meta.PreTokenBalances)
		confirmed.PostTokenBalances = toTokenBalances(meta.PostTokenBalances)
	}

	for _, inst := range tx.Message.Instructions {
		ci := types.ConfirmedInstruction{Data: inst.Data}
		if int(inst.ProgramIDIndex) < len(confirmed.AccountKeys) {
			ci.ProgramID = confirmed.AccountKeys[inst.ProgramIDIndex]
		}
		for _, idx := range inst.Accounts {
			if int(idx) < len(confirmed.AccountKeys) {
				ci.Accounts = append(ci.Accounts, confirmed.AccountKeys[idx])
			}
		}
		confirmed.Instructions = append(confirmed.Instructions, ci)
	}

	return confirmed
}

func toTokenBalances(in []rpc.TokenBalance) []types.TokenBalance {
	out := make([]types.TokenBalance, 0, len(in))
	for _, b := range in {
		tb := types.TokenBalance{
			AccountIndex: int(b.AccountIndex),
			Mint:         b.Mint,
			Owner:        b.Owner,
		}
		if b.UiTokenAmount != nil {
			tb.Decimals = b.UiTokenAmount.Decimals
			if amount, err := strconv.ParseUint(b.UiTokenAmount.Amount, 10, 64); err == nil {
				tb.Amount = amount
			}
		}
		out = append(out, tb)
	}
	return out
}
