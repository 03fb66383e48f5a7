package clients

import (
	"errors"

	"github.com/gagliardetto/solana-go/rpc"

	"github.com/TrippyLeaf/solana-pay/types"
)

// RPC method names, used as error context and metric labels.
const (
	MethodGetAccountInfo       = "getAccountInfo"
	MethodGetBalance           = "getBalance"
	MethodGetMinimumBalance    = "getMinimumBalanceForRentExemption"
	MethodGetSignatures        = "getSignaturesForAddress"
	MethodGetTransaction       = "getTransaction"
	MethodSendTransaction      = "sendTransaction"
	MethodGetSignatureStatuses = "getSignatureStatuses"
	MethodGetLatestBlockhash   = "getLatestBlockhash"
)

// isNotFound reports whether err is the RPC client's missing-value error.
func isNotFound(err error) bool {
	return errors.Is(err, rpc.ErrNotFound)
}

// networkError wraps a failed RPC call so callers can match types.ErrNetwork.
func networkError(method string, err error) error {
	if err == nil {
		return nil
	}
	return types.WrapError(types.ErrCodeNetwork, err, "%s failed", method)
}
