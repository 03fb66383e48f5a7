package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrippyLeaf/solana-pay/types"
)

var (
	recipient = solana.MustPublicKeyFromBase58("mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN")
	usdc      = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	refA      = solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")
	refB      = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strPtr(s string) *string { return &s }

func TestEncodeMinimal(t *testing.T) {
	out, err := Encode(&types.PaymentIntent{Recipient: recipient})
	require.NoError(t, err)
	assert.Equal(t, "solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN", out)
}

func TestEncodeFull(t *testing.T) {
	out, err := Encode(&types.PaymentIntent{
		Recipient:  recipient,
		Amount:     dec("1"),
		SPLToken:   &usdc,
		References: []solana.PublicKey{refA, refB},
		Label:      "Michael",
		Message:    "Thanks for all the fish",
		Memo:       strPtr("OrderId1234"),
	})
	require.NoError(t, err)
	assert.Equal(t,
		"solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN"+
			"?amount=1"+
			"&spl-token=EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"+
			"&reference=SysvarC1ock11111111111111111111111111111111"+
			"&reference=TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"+
			"&label=Michael"+
			"&message=Thanks+for+all+the+fish"+
			"&memo=OrderId1234",
		out)
}

func TestEncodeRequiresRecipient(t *testing.T) {
	_, err := Encode(&types.PaymentIntent{Amount: dec("1")})
	assert.ErrorIs(t, err, types.ErrMalformedDescriptor)

	_, err = Encode(nil)
	assert.ErrorIs(t, err, types.ErrMalformedDescriptor)
}

func TestDecodeFull(t *testing.T) {
	intent, err := Decode("solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN" +
		"?amount=0.01&spl-token=EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v" +
		"&reference=SysvarC1ock11111111111111111111111111111111" +
		"&label=Michael&message=Thanks%20for%20all%20the%20fish&memo=OrderId1234")
	require.NoError(t, err)

	assert.Equal(t, recipient, intent.Recipient)
	require.NotNil(t, intent.Amount)
	assert.Equal(t, "0.01", intent.Amount.String())
	require.NotNil(t, intent.SPLToken)
	assert.Equal(t, usdc, *intent.SPLToken)
	assert.Equal(t, []solana.PublicKey{refA}, intent.References)
	assert.Equal(t, "Michael", intent.Label)
	assert.Equal(t, "Thanks for all the fish", intent.Message)
	require.NotNil(t, intent.Memo)
	assert.Equal(t, "OrderId1234", *intent.Memo)
}

func TestDecodeOpenAmount(t *testing.T) {
	intent, err := Decode("solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN?label=Coffee")
	require.NoError(t, err)
	assert.Nil(t, intent.Amount)
	assert.True(t, intent.IsNative())
	assert.Nil(t, intent.Memo)
	assert.Empty(t, intent.References)
}

func TestDecodeZeroAmount(t *testing.T) {
	intent, err := Decode("solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN?amount=0")
	require.NoError(t, err)
	require.NotNil(t, intent.Amount)
	assert.True(t, intent.Amount.IsZero())
}

func TestDecodeKeepsReferenceOrderAndDuplicates(t *testing.T) {
	intent, err := Decode("solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN" +
		"?reference=TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA" +
		"&label=x" +
		"&reference=SysvarC1ock11111111111111111111111111111111" +
		"&reference=TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{refB, refA, refB}, intent.References)
	assert.True(t, IsReference(intent, refA))
	assert.False(t, IsReference(intent, usdc))
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
	}{
		{"wrong scheme", "bitcoin:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN"},
		{"no scheme", "mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN"},
		{"missing recipient", "solana:?amount=1"},
		{"bad recipient", "solana:not-a-key?amount=1"},
		{"bad recipient alphabet", "solana:0OIlvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN"},
		{"negative amount", "solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN?amount=-1"},
		{"exponent amount", "solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN?amount=1e3"},
		{"trailing dot", "solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN?amount=1."},
		{"empty amount", "solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN?amount="},
		{"bad token", "solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN?spl-token=usdc"},
		{"bad reference", "solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN?reference=SysvarC1ock11111111111111111111111111111111&reference=nope"},
		{"bad escape", "solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN?label=%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, err := Decode(tt.descriptor)
			assert.Nil(t, intent)
			assert.ErrorIs(t, err, types.ErrMalformedDescriptor)
		})
	}
}

func TestDecodeRejectsExcessNativePrecision(t *testing.T) {
	_, err := Decode("solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN?amount=0.0000000001")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrMalformedDescriptor))
	assert.True(t, errors.Is(err, types.ErrPrecisionMismatch))

	// Nine places is the native limit.
	intent, err := Decode("solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN?amount=0.000000001")
	require.NoError(t, err)
	assert.Equal(t, "0.000000001", intent.Amount.String())
}

func TestDecodeDefersTokenPrecision(t *testing.T) {
	intent, err := Decode("solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN" +
		"?amount=0.0000000001&spl-token=EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	require.NoError(t, err)
	assert.Equal(t, "0.0000000001", intent.Amount.String())
}

func TestRoundTrip(t *testing.T) {
	intents := []*types.PaymentIntent{
		{Recipient: recipient},
		{Recipient: recipient, Amount: dec("0.000000001")},
		{Recipient: recipient, Amount: dec("123456789.5"), References: []solana.PublicKey{refA, refB, refA}},
		{
			Recipient: recipient,
			Amount:    dec("25.75"),
			SPLToken:  &usdc,
			Label:     "Café & Bar?",
			Message:   "50% off: tea + scones #1",
			Memo:      strPtr("line1\nline2=ok&more"),
		},
		{Recipient: recipient, Memo: strPtr("")},
	}

	for _, in := range intents {
		encoded, err := Encode(in)
		require.NoError(t, err)

		out, err := Decode(encoded)
		require.NoError(t, err, encoded)

		assert.Equal(t, in.Recipient, out.Recipient)
		if in.Amount == nil {
			assert.Nil(t, out.Amount)
		} else {
			require.NotNil(t, out.Amount)
			assert.Equal(t, in.Amount.String(), out.Amount.String())
		}
		assert.Equal(t, in.SPLToken, out.SPLToken)
		assert.Len(t, out.References, len(in.References))
		for i := range in.References {
			assert.Equal(t, in.References[i], out.References[i])
		}
		assert.Equal(t, in.Label, out.Label)
		assert.Equal(t, in.Message, out.Message)
		assert.Equal(t, in.Memo, out.Memo)

		again, err := Encode(out)
		require.NoError(t, err)
		assert.Equal(t, encoded, again)
	}
}

func TestTransactionRequest(t *testing.T) {
	encoded, err := EncodeTransactionRequest(&types.TransactionRequestURL{
		Link:    "https://example.com/pay?order=1&item=2",
		Label:   "Store",
		Message: "Order 1",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "solana:https%3A%2F%2Fexample.com%2Fpay%3Forder%3D1%26item%3D2?"))

	req, err := DecodeTransactionRequest(encoded)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/pay?order=1&item=2", req.Link)
	assert.Equal(t, "Store", req.Label)
	assert.Equal(t, "Order 1", req.Message)

	d, err := Parse(encoded)
	require.NoError(t, err)
	assert.IsType(t, &types.TransactionRequestURL{}, d)

	_, err = Decode(encoded)
	assert.ErrorIs(t, err, types.ErrMalformedDescriptor)

	_, err = DecodeTransactionRequest("solana:mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN")
	assert.ErrorIs(t, err, types.ErrMalformedDescriptor)
}

func TestTransactionRequestRequiresHTTPS(t *testing.T) {
	_, err := EncodeTransactionRequest(&types.TransactionRequestURL{Link: "http://example.com/pay"})
	assert.ErrorIs(t, err, types.ErrMalformedDescriptor)

	_, err = Parse("solana:http%3A%2F%2Fexample.com%2Fpay")
	assert.ErrorIs(t, err, types.ErrMalformedDescriptor)
}
