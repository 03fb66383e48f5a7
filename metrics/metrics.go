// Package metrics records module events and latencies.
package metrics

import "time"

// Event names passed to Recorder.IncCounter.
const (
	EventTransferBuilt     = "transfer_built"
	EventTransferRejected  = "transfer_rejected"
	EventDescriptorDecoded = "descriptor_decoded"
	EventDescriptorInvalid = "descriptor_invalid"
	EventReferenceFound    = "reference_found"
	EventPaymentValid      = "payment_valid"
	EventPaymentInvalid    = "payment_invalid"
	EventSettled           = "settled"
	EventSettleFailed      = "settle_failed"
	EventRPCError          = "rpc_error"
)

// Recorder receives counters and latency observations. Labels beyond the
// ones an implementation knows about are ignored.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
