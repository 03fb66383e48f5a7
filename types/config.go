package types

import "time"

// ClientConfig contains configuration for the RPC-backed ledger client
type ClientConfig struct {
	Network    Network           `json:"network" mapstructure:"network" validate:"required,network"`
	RPCUrl     string            `json:"rpcUrl" mapstructure:"rpc_url" validate:"required,url"`
	WSUrl      string            `json:"wsUrl,omitempty" mapstructure:"ws_url" validate:"omitempty,url"`
	Commitment string            `json:"commitment,omitempty" mapstructure:"commitment" validate:"omitempty,oneof=processed confirmed finalized"`
	Headers    map[string]string `json:"headers,omitempty" mapstructure:"headers"`
}

// BuilderConfig tunes the transfer builder.
type BuilderConfig struct {
	// LamportsPerSignature is the fee assumed per required signature.
	LamportsPerSignature uint64 `json:"lamportsPerSignature,omitempty" mapstructure:"lamports_per_signature"`
}

// SettlementConfig controls confirmation polling after broadcast.
type SettlementConfig struct {
	PollInterval time.Duration `json:"pollInterval,omitempty" mapstructure:"poll_interval"`
	MaxAttempts  int           `json:"maxAttempts,omitempty" mapstructure:"max_attempts" validate:"gte=0"`
}

// ServerConfig configures the transaction request endpoint.
type ServerConfig struct {
	Addr    string `json:"addr,omitempty" mapstructure:"addr"`
	Label   string `json:"label,omitempty" mapstructure:"label"`
	IconURL string `json:"iconUrl,omitempty" mapstructure:"icon_url" validate:"omitempty,url"`
	BaseURL string `json:"baseUrl,omitempty" mapstructure:"base_url" validate:"omitempty,url"`
}

// Config contains global configuration for the module
type Config struct {
	Client         ClientConfig     `json:"client" mapstructure:"client"`
	Builder        BuilderConfig    `json:"builder" mapstructure:"builder"`
	Settlement     SettlementConfig `json:"settlement" mapstructure:"settlement"`
	Server         ServerConfig     `json:"server" mapstructure:"server"`
	DatabaseDSN    string           `json:"databaseDsn,omitempty" mapstructure:"database_dsn"`
	DefaultTimeout time.Duration    `json:"defaultTimeout,omitempty" mapstructure:"default_timeout"`
	LogLevel       string           `json:"logLevel,omitempty" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics  bool             `json:"enableMetrics,omitempty" mapstructure:"enable_metrics"`
}
