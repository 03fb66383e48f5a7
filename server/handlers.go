package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/TrippyLeaf/solana-pay/codec"
	"github.com/TrippyLeaf/solana-pay/qr"
	"github.com/TrippyLeaf/solana-pay/store"
	"github.com/TrippyLeaf/solana-pay/types"
	"github.com/TrippyLeaf/solana-pay/utils"
)

type createPaymentRequest struct {
	Recipient string  `json:"recipient" validate:"required,solana_address"`
	Amount    string  `json:"amount,omitempty" validate:"omitempty,amount"`
	SPLToken  string  `json:"splToken,omitempty" validate:"omitempty,solana_address"`
	Label     string  `json:"label,omitempty" validate:"max=255"`
	Message   string  `json:"message,omitempty" validate:"max=255"`
	Memo      *string `json:"memo,omitempty" validate:"omitempty,max=566"`
}

type paymentResponse struct {
	OrderID               string    `json:"orderId"`
	Reference             string    `json:"reference"`
	Status                string    `json:"status"`
	URL                   string    `json:"url"`
	TransactionRequestURL string    `json:"transactionRequestUrl,omitempty"`
	Signature             string    `json:"signature,omitempty"`
	Reason                string    `json:"reason,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
}

type transactionRequest struct {
	Account string `json:"account" validate:"required,solana_address"`
}

func (r *createPaymentRequest) intent() (*types.PaymentIntent, error) {
	recipient, err := utils.ValidateAddress(r.Recipient)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeValidation, err, "invalid recipient")
	}
	intent := &types.PaymentIntent{
		Recipient:  recipient,
		References: []solana.PublicKey{solana.NewWallet().PublicKey()},
		Label:      r.Label,
		Message:    r.Message,
		Memo:       r.Memo,
	}
	if r.Amount != "" {
		amount, err := utils.ValidateAmount(r.Amount)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeValidation, err, "invalid amount")
		}
		intent.Amount = amount
	}
	if r.SPLToken != "" {
		mint, err := utils.ValidateAddress(r.SPLToken)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeValidation, err, "invalid spl-token")
		}
		intent.SPLToken = &mint
	}
	return intent, nil
}

func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return types.WrapError(types.ErrCodeValidation, err, "invalid request body")
	}
	return utils.ValidateStruct(v)
}

func (s *Server) createPayment(c *gin.Context) {
	var req createPaymentRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	intent, err := req.intent()
	if err != nil {
		s.fail(c, err)
		return
	}

	// Reject anything a wallet would refuse to parse.
	descriptor, err := codec.Encode(intent)
	if err != nil {
		s.fail(c, err)
		return
	}
	if _, err := codec.Decode(descriptor); err != nil {
		s.fail(c, err)
		return
	}

	payment, err := store.NewPayment(intent)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.store.Create(c.Request.Context(), payment); err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Info("payment created", map[string]any{
		"orderId":   payment.OrderID,
		"reference": payment.Reference,
		"recipient": payment.Recipient,
	})

	resp, err := s.toResponse(payment)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) getPayment(c *gin.Context) {
	payment, err := s.store.GetByOrderID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	resp, err := s.toResponse(payment)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getPaymentQR renders the transfer request URL, or the transaction request
// URL with ?kind=transaction.
func (s *Server) getPaymentQR(c *gin.Context) {
	payment, err := s.store.GetByOrderID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	resp, err := s.toResponse(payment)
	if err != nil {
		s.fail(c, err)
		return
	}

	content := resp.URL
	if c.Query("kind") == "transaction" {
		if resp.TransactionRequestURL == "" {
			s.fail(c, types.Errorf(types.ErrCodeValidation, "server has no base url for transaction requests"))
			return
		}
		content = resp.TransactionRequestURL
	}

	size, _ := strconv.Atoi(c.DefaultQuery("size", "0"))
	png, err := qr.Encode(content, size)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// confirmPayment looks up the payment's reference on-chain and validates the
// transaction it finds.
func (s *Server) confirmPayment(c *gin.Context) {
	ctx := c.Request.Context()
	payment, err := s.store.GetByOrderID(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if payment.Status != store.StatusPending {
		s.respond(c, payment)
		return
	}

	intent, err := payment.Intent()
	if err != nil {
		s.fail(c, err)
		return
	}

	found, err := s.payments.FindReference(ctx, intent.References[0])
	if errors.Is(err, types.ErrReferenceNotFound) {
		s.respond(c, payment)
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	result, err := s.payments.ValidateTransfer(ctx, found.Signature, intent)
	if err != nil {
		s.fail(c, err)
		return
	}

	status, reason := store.StatusConfirmed, ""
	if !result.IsValid {
		status, reason = store.StatusFailed, result.InvalidReason
	}
	if err := s.store.UpdateStatus(ctx, payment.OrderID, status, found.Signature.String(), reason); err != nil {
		s.fail(c, err)
		return
	}

	s.logger.Info("payment checked", map[string]any{
		"orderId":   payment.OrderID,
		"signature": found.Signature.String(),
		"status":    string(status),
		"reason":    reason,
	})

	payment.Status, payment.Signature, payment.Reason = status, found.Signature.String(), reason
	s.respond(c, payment)
}

func (s *Server) describeTransaction(c *gin.Context) {
	payment, err := s.store.GetByOrderID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	label := payment.Label
	if label == "" {
		label = s.config.Label
	}
	c.JSON(http.StatusOK, gin.H{"label": label, "icon": s.config.IconURL})
}

func (s *Server) createTransaction(c *gin.Context) {
	var req transactionRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	payer, err := utils.ValidateAddress(req.Account)
	if err != nil {
		s.fail(c, types.WrapError(types.ErrCodeValidation, err, "invalid account"))
		return
	}

	ctx := c.Request.Context()
	payment, err := s.store.GetByOrderID(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if payment.Status != store.StatusPending {
		s.fail(c, types.Errorf(types.ErrCodeValidation, "payment is %s", payment.Status))
		return
	}

	intent, err := payment.Intent()
	if err != nil {
		s.fail(c, err)
		return
	}
	tx, err := s.payments.BuildTransaction(ctx, payer, intent)
	if err != nil {
		s.logger.Warn("transaction request rejected", map[string]any{
			"orderId": payment.OrderID,
			"account": payer.String(),
			"error":   err.Error(),
		})
		s.fail(c, err)
		return
	}
	encoded, err := utils.EncodeBase64Tx(tx)
	if err != nil {
		s.fail(c, types.WrapError(types.ErrCodeValidation, err, "failed to serialize transaction"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": encoded, "message": payment.Message})
}

func (s *Server) respond(c *gin.Context, payment *store.Payment) {
	resp, err := s.toResponse(payment)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) toResponse(p *store.Payment) (*paymentResponse, error) {
	intent, err := p.Intent()
	if err != nil {
		return nil, err
	}
	descriptor, err := codec.Encode(intent)
	if err != nil {
		return nil, err
	}

	resp := &paymentResponse{
		OrderID:   p.OrderID,
		Reference: p.Reference,
		Status:    string(p.Status),
		URL:       descriptor,
		Signature: p.Signature,
		Reason:    p.Reason,
		CreatedAt: p.CreatedAt,
	}
	if s.config.BaseURL != "" {
		link, err := codec.EncodeTransactionRequest(&types.TransactionRequestURL{
			Link:    s.config.BaseURL + "/pay/" + p.OrderID,
			Label:   intent.Label,
			Message: intent.Message,
		})
		if err != nil {
			return nil, err
		}
		resp.TransactionRequestURL = link
	}
	return resp, nil
}
