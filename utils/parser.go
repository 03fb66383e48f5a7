package utils

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/TrippyLeaf/solana-pay/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterValidation("network", validateNetworkTag)
	validate.RegisterValidation("solana_address", validateAddressTag)
	validate.RegisterValidation("amount", validateAmountTag)
}

// Validator exposes the shared validator so HTTP binding uses the same custom tags.
func Validator() *validator.Validate {
	return validate
}

// ValidateStruct runs struct-tag validation and wraps failures as validation errors.
func ValidateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return types.WrapError(types.ErrCodeValidation, err, "validation failed")
	}
	return nil
}

// ValidateConfig checks a Config after it has been loaded.
func ValidateConfig(cfg *types.Config) error {
	if err := validate.Struct(cfg); err != nil {
		return types.WrapError(types.ErrCodeConfig, err, "invalid config")
	}

	return nil
}

// ParseConfig parses Config from JSON
func ParseConfig(data []byte) (*types.Config, error) {
	var config types.Config

	if err := json.Unmarshal(data, &config); err != nil {
		return nil, types.WrapError(types.ErrCodeConfig, err, "failed to parse config")
	}

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// SerializeVerificationResult converts VerificationResult to JSON
func SerializeVerificationResult(result *types.VerificationResult) ([]byte, error) {
	return json.Marshal(result)
}

// SerializeSettlementResult converts SettlementResult to JSON
func SerializeSettlementResult(result *types.SettlementResult) ([]byte, error) {
	return json.Marshal(result)
}

func validateNetworkTag(fl validator.FieldLevel) bool {
	return types.Network(fl.Field().String()).IsValid()
}

func validateAddressTag(fl validator.FieldLevel) bool {
	_, err := ValidateAddress(fl.Field().String())
	return err == nil
}

func validateAmountTag(fl validator.FieldLevel) bool {
	_, err := ValidateAmount(fl.Field().String())
	return err == nil
}
