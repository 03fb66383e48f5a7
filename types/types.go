package types

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Protocol constants
const (
	// Scheme is the URI scheme of every payment descriptor.
	Scheme = "solana"

	// NativeDecimals is the precision of SOL (1 SOL = 10^9 lamports).
	NativeDecimals = 9

	// TokenAccountSize is the data length of an SPL token account.
	TokenAccountSize = 165

	// MintAccountSize is the data length of an SPL mint.
	MintAccountSize = 82

	// DefaultLamportsPerSignature is the base fee charged per transaction signature.
	DefaultLamportsPerSignature = 5000
)

// MemoProgramID is the SPL Memo program (v2).
var MemoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

// Descriptor is implemented by the two URL kinds a wallet can receive.
type Descriptor interface {
	descriptor()
}

// PaymentIntent is a decoded transfer request: who gets paid, how much,
// in which asset, and which tags locate the payment on-chain.
type PaymentIntent struct {
	// Recipient is the wallet receiving the funds.
	Recipient solana.PublicKey `json:"recipient"`

	// Amount in display units. Nil means an open amount the wallet must prompt for.
	Amount *decimal.Decimal `json:"amount,omitempty"`

	// SPLToken is the mint of the requested token. Nil means native SOL.
	SPLToken *solana.PublicKey `json:"splToken,omitempty"`

	// References are lookup tags attached to the transfer instruction, in order.
	References []solana.PublicKey `json:"reference,omitempty"`

	// Label describes the merchant. Display only.
	Label string `json:"label,omitempty"`

	// Message describes the purchase. Display only.
	Message string `json:"message,omitempty"`

	// Memo is written on-chain through the memo program when set.
	Memo *string `json:"memo,omitempty"`
}

func (*PaymentIntent) descriptor() {}

// IsNative reports whether the intent requests SOL rather than an SPL token.
func (p *PaymentIntent) IsNative() bool {
	return p.SPLToken == nil
}

// WithAmount returns a copy of the intent carrying amount. The receiver is left untouched.
func (p *PaymentIntent) WithAmount(amount decimal.Decimal) *PaymentIntent {
	out := *p
	out.Amount = &amount
	out.References = append([]solana.PublicKey(nil), p.References...)
	return &out
}

// TransactionRequestURL points a wallet at an HTTPS endpoint that builds the
// transaction interactively.
type TransactionRequestURL struct {
	Link    string `json:"link"`
	Label   string `json:"label,omitempty"`
	Message string `json:"message,omitempty"`
}

func (*TransactionRequestURL) descriptor() {}

// TransferRequest is the builder output: an ordered instruction list ready
// for signing. It is only ever returned fully assembled.
type TransferRequest struct {
	FeePayer     solana.PublicKey
	Instructions []solana.Instruction
	References   []solana.PublicKey

	// Amount moved, in base units of the asset.
	Amount   uint64
	Decimals uint8
	SPLToken *solana.PublicKey

	// CreatesRecipientAccount is set when an associated token account
	// creation instruction precedes the transfer.
	CreatesRecipientAccount bool
}

// Transaction assembles an unsigned legacy transaction paid for by FeePayer.
func (r *TransferRequest) Transaction(recentBlockhash solana.Hash) (*solana.Transaction, error) {
	return solana.NewTransaction(r.Instructions, recentBlockhash, solana.TransactionPayer(r.FeePayer))
}

// SignatureInfo is one entry of an address's signature history.
type SignatureInfo struct {
	Signature          solana.Signature `json:"signature"`
	Slot               uint64           `json:"slot"`
	BlockTime          *time.Time       `json:"blockTime,omitempty"`
	Failed             bool             `json:"failed"`
	ConfirmationStatus string           `json:"confirmationStatus,omitempty"`
}

// SignatureStatus is the cluster's view of a submitted transaction.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	ConfirmationStatus string
	Err                interface{}
}

// VerificationResult reports whether a confirmed transaction satisfies an intent.
type VerificationResult struct {
	IsValid       bool             `json:"isValid"`
	InvalidReason string           `json:"invalidReason,omitempty"`
	Signature     string           `json:"signature,omitempty"`
	Slot          uint64           `json:"slot,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Token         string           `json:"token,omitempty"`
	Recipient     string           `json:"recipient,omitempty"`
	Timestamp     *time.Time       `json:"timestamp,omitempty"`
}

// SettlementResult contains the outcome of broadcasting a signed transaction.
type SettlementResult struct {
	Success            bool      `json:"success"`
	Signature          string    `json:"signature,omitempty"`
	Slot               uint64    `json:"slot,omitempty"`
	ConfirmationStatus string    `json:"confirmationStatus,omitempty"`
	Network            Network   `json:"network,omitempty"`
	Error              string    `json:"error,omitempty"`
	Extra              ExtraData `json:"extra,omitempty"`
}

// ExtraData contains additional result-specific data
type ExtraData map[string]interface{}
