package clients

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/TrippyLeaf/solana-pay/types"
)

// MemoryClient is an in-process Client backed by maps. It serves tests and
// offline tooling; nothing it holds ever reaches a cluster.
type MemoryClient struct {
	mu sync.RWMutex

	network       types.Network
	accounts      map[solana.PublicKey]*types.AccountInfo
	mints         map[solana.PublicKey]*types.MintInfo
	tokenAccounts map[solana.PublicKey]*types.TokenAccount
	history       map[solana.PublicKey][]types.SignatureInfo
	transactions  map[solana.Signature]*types.ConfirmedTransaction
	statuses      map[solana.Signature]*types.SignatureStatus
	sent          []*solana.Transaction
	rent          map[uint64]uint64
	blockhash     solana.Hash
	slot          uint64
}

var _ Client = (*MemoryClient)(nil)

// NewMemoryClient returns an empty ledger for network.
func NewMemoryClient(network types.Network) *MemoryClient {
	return &MemoryClient{
		network:       network,
		accounts:      map[solana.PublicKey]*types.AccountInfo{},
		mints:         map[solana.PublicKey]*types.MintInfo{},
		tokenAccounts: map[solana.PublicKey]*types.TokenAccount{},
		history:       map[solana.PublicKey][]types.SignatureInfo{},
		transactions:  map[solana.Signature]*types.ConfirmedTransaction{},
		statuses:      map[solana.Signature]*types.SignatureStatus{},
		rent:          map[uint64]uint64{},
		blockhash:     solana.Hash{1},
	}
}

// SetAccount stores a system-owned wallet holding lamports.
func (m *MemoryClient) SetAccount(address solana.PublicKey, lamports uint64) {
	m.PutAccount(&types.AccountInfo{Address: address, Owner: solana.SystemProgramID, Lamports: lamports})
}

// PutAccount stores an arbitrary account.
func (m *MemoryClient) PutAccount(info *types.AccountInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *info
	m.accounts[info.Address] = &cp
}

// SetMint stores an initialized mint.
func (m *MemoryClient) SetMint(mint solana.PublicKey, decimals uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mints[mint] = &types.MintInfo{Address: mint, Decimals: decimals, IsInitialized: true}
}

// SetTokenBalance stores the associated token account of owner for mint and returns its address.
func (m *MemoryClient) SetTokenBalance(owner, mint solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	ata, err := DeriveAssociatedAccount(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenAccounts[ata] = &types.TokenAccount{
		Address:       ata,
		Mint:          mint,
		Owner:         owner,
		Amount:        amount,
		IsInitialized: true,
	}
	return ata, nil
}

// SetRent overrides the rent-exempt minimum for accounts of dataSize bytes.
func (m *MemoryClient) SetRent(dataSize, lamports uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rent[dataSize] = lamports
}

// AddTransaction records a confirmed transaction and indexes it under every
// account key, newest first.
func (m *MemoryClient) AddTransaction(tx *types.ConfirmedTransaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slot++
	if tx.Slot == 0 {
		tx.Slot = m.slot
	}
	m.transactions[tx.Signature] = tx

	info := types.SignatureInfo{
		Signature:          tx.Signature,
		Slot:               tx.Slot,
		BlockTime:          tx.BlockTime,
		Failed:             tx.Failed,
		ConfirmationStatus: "finalized",
	}
	seen := map[solana.PublicKey]bool{}
	for _, key := range tx.AccountKeys {
		if seen[key] {
			continue
		}
		seen[key] = true
		m.history[key] = append([]types.SignatureInfo{info}, m.history[key]...)
	}
}

// Sent returns the transactions submitted through SendTransaction.
func (m *MemoryClient) Sent() []*solana.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*solana.Transaction(nil), m.sent...)
}

func (m *MemoryClient) GetAccountInfo(_ context.Context, address solana.PublicKey) (*types.AccountInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.accounts[address]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryClient) GetBalance(_ context.Context, address solana.PublicKey) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.accounts[address]; ok {
		return a.Lamports, nil
	}
	return 0, nil
}

func (m *MemoryClient) GetMintInfo(_ context.Context, mint solana.PublicKey) (*types.MintInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if info, ok := m.mints[mint]; ok {
		cp := *info
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryClient) GetTokenAccount(_ context.Context, address solana.PublicKey) (*types.TokenAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acct, ok := m.tokenAccounts[address]; ok {
		cp := *acct
		return &cp, nil
	}
	return nil, nil
}

// GetMinimumBalanceForRentExemption uses the mainnet rent schedule unless overridden.
func (m *MemoryClient) GetMinimumBalanceForRentExemption(_ context.Context, dataSize uint64) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.rent[dataSize]; ok {
		return v, nil
	}
	// (128 bytes of account overhead + data) * 3480 lamports/byte-year * 2 years
	return (128 + dataSize) * 3480 * 2, nil
}

func (m *MemoryClient) DeriveAssociatedAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	return DeriveAssociatedAccount(owner, mint)
}

func (m *MemoryClient) GetSignaturesForAddress(_ context.Context, address solana.PublicKey, before solana.Signature, limit int) ([]types.SignatureInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.history[address]
	start := 0
	if before != (solana.Signature{}) {
		for i, s := range all {
			if s.Signature == before {
				start = i + 1
				break
			}
		}
	}
	end := len(all)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	if start >= end {
		return nil, nil
	}
	return append([]types.SignatureInfo(nil), all[start:end]...), nil
}

func (m *MemoryClient) GetConfirmedTransaction(_ context.Context, sig solana.Signature) (*types.ConfirmedTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transactions[sig], nil
}

// SendTransaction records tx and reports it finalized on the next status query.
func (m *MemoryClient) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, types.Errorf(types.ErrCodeSettlement, "transaction is not signed")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.slot++
	sig := tx.Signatures[0]
	m.sent = append(m.sent, tx)
	m.statuses[sig] = &types.SignatureStatus{Slot: m.slot, ConfirmationStatus: "finalized"}
	return sig, nil
}

func (m *MemoryClient) GetSignatureStatus(_ context.Context, sig solana.Signature) (*types.SignatureStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.statuses[sig]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryClient) GetLatestBlockhash(context.Context) (solana.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blockhash, nil
}

func (m *MemoryClient) GetNetwork() types.Network { return m.network }

func (m *MemoryClient) Close() {}
