package store

import (
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/TrippyLeaf/solana-pay/types"
)

// Status is the lifecycle state of a stored payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Payment is an issued payment request keyed by its merchant order ID and
// its on-chain reference.
type Payment struct {
	gorm.Model
	OrderID   string `gorm:"uniqueIndex;size:36"`
	Reference string `gorm:"uniqueIndex;size:44"`
	Recipient string `gorm:"size:44;not null"`
	Amount    string `gorm:"size:40"` // display units, empty for an open amount
	SPLToken  string `gorm:"size:44"`
	Label     string `gorm:"size:255"`
	Message   string `gorm:"size:255"`
	Memo      string `gorm:"size:566"`
	HasMemo   bool
	Status    Status `gorm:"size:20;default:'pending';index"`
	Signature string `gorm:"size:88"`
	Reason    string `gorm:"size:100"`
}

// NewPayment records intent under a fresh order ID. The intent's first
// reference becomes the lookup key, so one is required.
func NewPayment(intent *types.PaymentIntent) (*Payment, error) {
	if intent == nil || len(intent.References) == 0 {
		return nil, types.Errorf(types.ErrCodeValidation, "payment needs a reference")
	}

	p := &Payment{
		OrderID:   uuid.NewString(),
		Reference: intent.References[0].String(),
		Recipient: intent.Recipient.String(),
		Label:     intent.Label,
		Message:   intent.Message,
		Status:    StatusPending,
	}
	if intent.Amount != nil {
		p.Amount = intent.Amount.String()
	}
	if intent.SPLToken != nil {
		p.SPLToken = intent.SPLToken.String()
	}
	if intent.Memo != nil {
		p.Memo = *intent.Memo
		p.HasMemo = true
	}
	return p, nil
}

// Intent rebuilds the payment intent the record was created from.
func (p *Payment) Intent() (*types.PaymentIntent, error) {
	recipient, err := solana.PublicKeyFromBase58(p.Recipient)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeValidation, err, "stored recipient %q", p.Recipient)
	}
	reference, err := solana.PublicKeyFromBase58(p.Reference)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeValidation, err, "stored reference %q", p.Reference)
	}

	intent := &types.PaymentIntent{
		Recipient:  recipient,
		References: []solana.PublicKey{reference},
		Label:      p.Label,
		Message:    p.Message,
	}
	if p.Amount != "" {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeValidation, err, "stored amount %q", p.Amount)
		}
		intent.Amount = &amount
	}
	if p.SPLToken != "" {
		mint, err := solana.PublicKeyFromBase58(p.SPLToken)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeValidation, err, "stored token %q", p.SPLToken)
		}
		intent.SPLToken = &mint
	}
	if p.HasMemo {
		memo := p.Memo
		intent.Memo = &memo
	}
	return intent, nil
}
