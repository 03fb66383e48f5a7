package utils

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrippyLeaf/solana-pay/types"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"1", false},
		{"0", false},
		{"0.000000001", false},
		{"1.50", false},
		{"", true},
		{"-1", true},
		{"+1", true},
		{"1e9", true},
		{".5", true},
		{"1.", true},
		{"abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ValidateAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPrecisionAndBaseUnits(t *testing.T) {
	assert.Equal(t, 1, DecimalPlaces(decimal.RequireFromString("1.50")))
	assert.Equal(t, 0, DecimalPlaces(decimal.RequireFromString("10")))

	assert.NoError(t, ValidatePrecision(decimal.RequireFromString("0.000000001"), 9))
	assert.Error(t, ValidatePrecision(decimal.RequireFromString("0.0000000001"), 9))

	units, err := ToBaseUnits(decimal.RequireFromString("0.01"), 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), units)

	_, err = ToBaseUnits(decimal.RequireFromString("-1"), 9)
	assert.Error(t, err)
	_, err = ToBaseUnits(decimal.RequireFromString("100000000000"), 9)
	assert.Error(t, err)

	assert.Equal(t, "1.5", FromBaseUnits(1_500_000, 6).String())
}

func TestValidateAddress(t *testing.T) {
	key, err := ValidateAddress("mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN")
	require.NoError(t, err)
	assert.Equal(t, "mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN", key.String())

	for _, bad := range []string{"", "short", "0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"} {
		_, err := ValidateAddress(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsBase58String(t *testing.T) {
	assert.True(t, isBase58String("123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"))
	for _, bad := range []string{"", "0", "O", "I", "l", "abc+", "ab c"} {
		assert.False(t, isBase58String(bad), bad)
	}
}

func TestValidateStructTags(t *testing.T) {
	type request struct {
		Recipient string `validate:"required,solana_address"`
		Amount    string `validate:"omitempty,amount"`
		Network   string `validate:"omitempty,network"`
	}

	assert.NoError(t, ValidateStruct(&request{Recipient: "mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN", Amount: "2.5", Network: "solana-devnet"}))
	assert.ErrorIs(t, ValidateStruct(&request{Recipient: "nope"}), types.ErrValidation)
	assert.ErrorIs(t, ValidateStruct(&request{Recipient: "mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN", Amount: "-2"}), types.ErrValidation)
	assert.ErrorIs(t, ValidateStruct(&request{Recipient: "mvines9iiHiQTysrwkJjGf2gb9Ex9jXJX8ns3qwf2kN", Network: "base"}), types.ErrValidation)
}

func TestBase64TxPadsSignatures(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{solana.NewInstruction(types.MemoProgramID, solana.AccountMetaSlice{solana.Meta(payer).SIGNER()}, []byte("hi"))},
		solana.Hash{9},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)

	encoded, err := EncodeBase64Tx(tx)
	require.NoError(t, err)

	decoded, err := DecodeBase64Tx(encoded)
	require.NoError(t, err)
	require.Len(t, decoded.Signatures, 1)
	assert.Equal(t, solana.Signature{}, decoded.Signatures[0])
	assert.Equal(t, solana.Hash{9}, decoded.Message.RecentBlockhash)

	_, err = DecodeBase64Tx("!!!")
	assert.Error(t, err)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"client":{"network":"solana-devnet","rpcUrl":"https://api.devnet.solana.com"},"logLevel":"debug"}`))
	require.NoError(t, err)
	assert.Equal(t, types.NetworkDevnet, cfg.Client.Network)

	_, err = ParseConfig([]byte(`{"client":{"network":"bitcoin","rpcUrl":"https://x.example.com"}}`))
	assert.ErrorIs(t, err, types.ErrConfig)
}
