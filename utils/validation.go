package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// amountPattern accepts plain non-negative decimals: no sign, no exponent.
var amountPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// base58Pattern matches the bitcoin base58 alphabet used for keys and signatures.
var base58Pattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)

// ValidateAmount checks if an amount string is a valid non-negative decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	if !amountPattern.MatchString(amount) {
		return nil, fmt.Errorf("invalid amount format: %q", amount)
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// DecimalPlaces returns the number of significant fractional digits of d.
// Trailing zeros do not count: 1.50 has one decimal place.
func DecimalPlaces(d decimal.Decimal) int {
	s := d.String()
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return len(s) - i - 1
}

// ValidatePrecision fails when d carries more fractional digits than decimals allows.
func ValidatePrecision(d decimal.Decimal, decimals uint8) error {
	if places := DecimalPlaces(d); places > int(decimals) {
		return fmt.Errorf("amount %s has %d decimal places, asset allows %d", d.String(), places, decimals)
	}
	return nil
}

// ToBaseUnits converts a display amount into integer base units, rounding down.
func ToBaseUnits(d decimal.Decimal, decimals uint8) (uint64, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("amount cannot be negative")
	}

	units := d.Shift(int32(decimals)).Floor().BigInt()
	if !units.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows base units", d.String())
	}

	return units.Uint64(), nil
}

// FromBaseUnits formats integer base units back to a display decimal.
func FromBaseUnits(units uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -int32(decimals))
}

// ValidateAddress parses a base58 Solana address, checking length and alphabet
func ValidateAddress(address string) (solana.PublicKey, error) {
	if address == "" {
		return solana.PublicKey{}, fmt.Errorf("address cannot be empty")
	}

	// Solana address validation - base58, typically 32-44 characters
	if len(address) < 32 || len(address) > 44 {
		return solana.PublicKey{}, fmt.Errorf("Solana address has invalid length")
	}
	if !isBase58String(address) {
		return solana.PublicKey{}, fmt.Errorf("Solana address must be valid base58")
	}

	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid Solana address: %w", err)
	}

	return key, nil
}

// ValidateTransactionSignature checks a base58 transaction signature
func ValidateTransactionSignature(sig string) (solana.Signature, error) {
	// Solana transaction signature - base58 encoded, typically 87-88 characters
	if len(sig) < 80 || len(sig) > 90 {
		return solana.Signature{}, fmt.Errorf("Solana transaction signature has invalid length")
	}
	if !isBase58String(sig) {
		return solana.Signature{}, fmt.Errorf("Solana transaction signature must be valid base58")
	}

	return solana.SignatureFromBase58(sig)
}

// Helper function to check if a string is valid base58
func isBase58String(s string) bool {
	return base58Pattern.MatchString(s)
}
