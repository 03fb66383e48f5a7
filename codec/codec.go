// Package codec encodes and decodes Solana Pay descriptor URLs.
//
// Two URL kinds share the "solana:" scheme. A transfer request carries the
// recipient address as its path:
//
//	solana:<recipient>?amount=<amount>&spl-token=<mint>&reference=<ref>&label=<label>&message=<message>&memo=<memo>
//
// A transaction request carries a percent-encoded HTTPS link instead:
//
//	solana:<link>?label=<label>&message=<message>
//
// Nothing in this package performs network access.
package codec

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/TrippyLeaf/solana-pay/types"
	"github.com/TrippyLeaf/solana-pay/utils"
)

// Query parameter names
const (
	ParamAmount    = "amount"
	ParamSPLToken  = "spl-token"
	ParamReference = "reference"
	ParamLabel     = "label"
	ParamMessage   = "message"
	ParamMemo      = "memo"
)

// Encode serializes a transfer request. Only the recipient is required.
func Encode(intent *types.PaymentIntent) (string, error) {
	if intent == nil || intent.Recipient.IsZero() {
		return "", types.Errorf(types.ErrCodeMalformedDescriptor, "recipient is required")
	}

	var q query
	if intent.Amount != nil {
		q.add(ParamAmount, intent.Amount.String())
	}
	if intent.SPLToken != nil {
		q.add(ParamSPLToken, intent.SPLToken.String())
	}
	for _, ref := range intent.References {
		q.add(ParamReference, ref.String())
	}
	if intent.Label != "" {
		q.add(ParamLabel, intent.Label)
	}
	if intent.Message != "" {
		q.add(ParamMessage, intent.Message)
	}
	if intent.Memo != nil {
		q.add(ParamMemo, *intent.Memo)
	}

	return types.Scheme + ":" + intent.Recipient.String() + q.encode(), nil
}

// EncodeTransactionRequest serializes a transaction request. The link must be HTTPS.
func EncodeTransactionRequest(req *types.TransactionRequestURL) (string, error) {
	if req == nil {
		return "", types.Errorf(types.ErrCodeMalformedDescriptor, "link is required")
	}
	if _, err := parseLink(req.Link); err != nil {
		return "", err
	}

	var q query
	if req.Label != "" {
		q.add(ParamLabel, req.Label)
	}
	if req.Message != "" {
		q.add(ParamMessage, req.Message)
	}

	return types.Scheme + ":" + url.QueryEscape(req.Link) + q.encode(), nil
}

// Decode parses a transfer request descriptor into a PaymentIntent.
func Decode(descriptor string) (*types.PaymentIntent, error) {
	d, err := Parse(descriptor)
	if err != nil {
		return nil, err
	}
	intent, ok := d.(*types.PaymentIntent)
	if !ok {
		return nil, types.Errorf(types.ErrCodeMalformedDescriptor, "descriptor is a transaction request, not a transfer request")
	}
	return intent, nil
}

// DecodeTransactionRequest parses a transaction request descriptor.
func DecodeTransactionRequest(descriptor string) (*types.TransactionRequestURL, error) {
	d, err := Parse(descriptor)
	if err != nil {
		return nil, err
	}
	req, ok := d.(*types.TransactionRequestURL)
	if !ok {
		return nil, types.Errorf(types.ErrCodeMalformedDescriptor, "descriptor is a transfer request, not a transaction request")
	}
	return req, nil
}

// Parse decodes either descriptor kind. The result is a *types.PaymentIntent
// or a *types.TransactionRequestURL.
func Parse(descriptor string) (types.Descriptor, error) {
	scheme, rest, ok := strings.Cut(descriptor, ":")
	if !ok || !strings.EqualFold(scheme, types.Scheme) {
		return nil, types.Errorf(types.ErrCodeMalformedDescriptor, "protocol invalid")
	}

	// The fragment carries nothing in either URL kind.
	rest, _, _ = strings.Cut(rest, "#")
	path, rawQuery, _ := strings.Cut(rest, "?")
	if path == "" {
		return nil, types.Errorf(types.ErrCodeMalformedDescriptor, "pathname missing")
	}

	q, err := parseQuery(rawQuery)
	if err != nil {
		return nil, err
	}

	pathname, err := url.PathUnescape(path)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeMalformedDescriptor, err, "pathname invalid")
	}

	if strings.Contains(pathname, ":") {
		return parseTransactionRequest(pathname, q)
	}
	return parseTransferRequest(pathname, q)
}

func parseTransferRequest(pathname string, q query) (*types.PaymentIntent, error) {
	recipient, err := utils.ValidateAddress(pathname)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeMalformedDescriptor, err, "recipient invalid")
	}

	intent := &types.PaymentIntent{Recipient: recipient}

	if v, ok := q.get(ParamSPLToken); ok {
		mint, err := utils.ValidateAddress(v)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeMalformedDescriptor, err, "spl-token invalid")
		}
		intent.SPLToken = &mint
	}

	if v, ok := q.get(ParamAmount); ok {
		amount, err := utils.ValidateAmount(v)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeMalformedDescriptor, err, "amount invalid")
		}
		// Mint precision is unknown until the builder fetches it.
		if intent.IsNative() {
			if err := utils.ValidatePrecision(*amount, types.NativeDecimals); err != nil {
				return nil, &types.SolanaPayError{
					Code:    types.ErrCodeMalformedDescriptor,
					Message: fmt.Sprintf("amount decimals invalid: %v", err),
					Err:     types.ErrPrecisionMismatch,
				}
			}
		}
		intent.Amount = amount
	}

	for _, v := range q.getAll(ParamReference) {
		ref, err := utils.ValidateAddress(v)
		if err != nil {
			return nil, types.WrapError(types.ErrCodeMalformedDescriptor, err, "reference invalid")
		}
		intent.References = append(intent.References, ref)
	}

	intent.Label, _ = q.get(ParamLabel)
	intent.Message, _ = q.get(ParamMessage)
	if v, ok := q.get(ParamMemo); ok {
		memo := v
		intent.Memo = &memo
	}

	return intent, nil
}

func parseTransactionRequest(pathname string, q query) (*types.TransactionRequestURL, error) {
	link, err := parseLink(pathname)
	if err != nil {
		return nil, err
	}

	req := &types.TransactionRequestURL{Link: link.String()}
	req.Label, _ = q.get(ParamLabel)
	req.Message, _ = q.get(ParamMessage)

	return req, nil
}

func parseLink(raw string) (*url.URL, error) {
	link, err := url.Parse(raw)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeMalformedDescriptor, err, "link invalid")
	}
	if link.Scheme != "https" || link.Host == "" {
		return nil, types.Errorf(types.ErrCodeMalformedDescriptor, "link must be an absolute https URL")
	}
	return link, nil
}

// IsReference reports whether key appears among the intent's references.
func IsReference(intent *types.PaymentIntent, key solana.PublicKey) bool {
	for _, ref := range intent.References {
		if ref.Equals(key) {
			return true
		}
	}
	return false
}
