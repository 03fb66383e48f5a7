package solanapay

import (
	"time"

	"github.com/TrippyLeaf/solana-pay/clients"
	"github.com/TrippyLeaf/solana-pay/logger"
	"github.com/TrippyLeaf/solana-pay/metrics"
)

type Option func(*SolanaPay)

func WithLogger(l logger.Logger) Option {
	return func(p *SolanaPay) {
		p.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(p *SolanaPay) {
		p.metrics = r
	}
}

func WithTimeout(t time.Duration) Option {
	return func(p *SolanaPay) {
		p.timeout = t
	}
}

// WithClient replaces the RPC client built from config, typically with a
// test double or a client pointed at a private node.
func WithClient(c clients.Client) Option {
	return func(p *SolanaPay) {
		p.client = c
	}
}
