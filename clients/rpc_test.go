package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrippyLeaf/solana-pay/types"
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcHandler answers one JSON-RPC method with a result or an error.
type rpcHandler func(params []json.RawMessage) (any, *rpcError)

// stubRPC serves canned JSON-RPC responses keyed by method name.
type stubRPC struct {
	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    []rpcRequest
}

func newStubRPC(t *testing.T, handlers map[string]rpcHandler) (*stubRPC, *SolanaClient) {
	t.Helper()
	stub := &stubRPC{handlers: handlers}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	c, err := NewSolanaClient(types.ClientConfig{Network: types.NetworkLocalnet, RPCUrl: srv.URL})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return stub, c
}

func (s *stubRPC) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, req)
	handler, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = rpcError{Code: -32601, Message: "method not found"}
	} else if result, rpcErr := handler(req.Params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *stubRPC) lastCall(method string) (rpcRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].Method == method {
			return s.calls[i], true
		}
	}
	return rpcRequest{}, false
}

func contextResult(value any) map[string]any {
	return map[string]any{
		"context": map[string]any{"slot": 1},
		"value":   value,
	}
}

func accountResult(owner solana.PublicKey, lamports uint64, data []byte) rpcHandler {
	return func([]json.RawMessage) (any, *rpcError) {
		return contextResult(map[string]any{
			"lamports":   lamports,
			"owner":      owner.String(),
			"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
			"executable": false,
			"rentEpoch":  0,
			"space":      len(data),
		}), nil
	}
}

func missingAccount([]json.RawMessage) (any, *rpcError) {
	return contextResult(nil), nil
}

func TestSolanaClientGetAccountInfo(t *testing.T) {
	ctx := context.Background()
	address := solana.NewWallet().PublicKey()

	t.Run("missing", func(t *testing.T) {
		_, c := newStubRPC(t, map[string]rpcHandler{MethodGetAccountInfo: missingAccount})

		info, err := c.GetAccountInfo(ctx, address)
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("present", func(t *testing.T) {
		data := []byte{9, 8, 7}
		stub, c := newStubRPC(t, map[string]rpcHandler{
			MethodGetAccountInfo: accountResult(solana.SystemProgramID, 5000, data),
		})

		info, err := c.GetAccountInfo(ctx, address)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, address, info.Address)
		assert.Equal(t, solana.SystemProgramID, info.Owner)
		assert.Equal(t, uint64(5000), info.Lamports)
		assert.Equal(t, data, info.Data)
		assert.True(t, info.IsSystemAccount())

		call, ok := stub.lastCall(MethodGetAccountInfo)
		require.True(t, ok)
		require.NotEmpty(t, call.Params)
		var requested string
		require.NoError(t, json.Unmarshal(call.Params[0], &requested))
		assert.Equal(t, address.String(), requested)
	})

	t.Run("rpc error", func(t *testing.T) {
		_, c := newStubRPC(t, map[string]rpcHandler{
			MethodGetAccountInfo: func([]json.RawMessage) (any, *rpcError) {
				return nil, &rpcError{Code: -32005, Message: "node is behind"}
			},
		})

		info, err := c.GetAccountInfo(ctx, address)
		assert.Nil(t, info)
		assert.ErrorIs(t, err, types.ErrNetwork)
	})
}

func TestSolanaClientGetMintInfo(t *testing.T) {
	ctx := context.Background()
	address := solana.NewWallet().PublicKey()
	tokenAcct := tokenAccountData(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), 1, token.Initialized)

	t.Run("valid mint", func(t *testing.T) {
		_, c := newStubRPC(t, map[string]rpcHandler{
			MethodGetAccountInfo: accountResult(solana.TokenProgramID, 1_461_600, mintData(500, 6, true)),
		})

		mint, err := c.GetMintInfo(ctx, address)
		require.NoError(t, err)
		require.NotNil(t, mint)
		assert.Equal(t, uint8(6), mint.Decimals)
		assert.Equal(t, uint64(500), mint.Supply)
		assert.True(t, mint.IsInitialized)
	})

	t.Run("missing", func(t *testing.T) {
		_, c := newStubRPC(t, map[string]rpcHandler{MethodGetAccountInfo: missingAccount})

		mint, err := c.GetMintInfo(ctx, address)
		require.NoError(t, err)
		assert.Nil(t, mint)
	})

	tests := []struct {
		name  string
		owner solana.PublicKey
		data  []byte
	}{
		{"wallet", solana.SystemProgramID, nil},
		{"foreign program", solana.NewWallet().PublicKey(), mintData(500, 6, true)},
		{"token account", solana.TokenProgramID, tokenAcct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newStubRPC(t, map[string]rpcHandler{
				MethodGetAccountInfo: accountResult(tt.owner, 1_000_000, tt.data),
			})

			mint, err := c.GetMintInfo(ctx, address)
			assert.Nil(t, mint)
			assert.ErrorIs(t, err, types.ErrMintNotInitialized)
		})
	}
}

func TestSolanaClientGetTokenAccount(t *testing.T) {
	ctx := context.Background()
	address := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	t.Run("valid", func(t *testing.T) {
		_, c := newStubRPC(t, map[string]rpcHandler{
			MethodGetAccountInfo: accountResult(solana.TokenProgramID, 2_039_280, tokenAccountData(mint, owner, 77, token.Initialized)),
		})

		acct, err := c.GetTokenAccount(ctx, address)
		require.NoError(t, err)
		require.NotNil(t, acct)
		assert.Equal(t, owner, acct.Owner)
		assert.Equal(t, mint, acct.Mint)
		assert.Equal(t, uint64(77), acct.Amount)
		assert.False(t, acct.IsFrozen)
	})

	t.Run("wrong owner", func(t *testing.T) {
		_, c := newStubRPC(t, map[string]rpcHandler{
			MethodGetAccountInfo: accountResult(solana.SystemProgramID, 1_000_000, nil),
		})

		acct, err := c.GetTokenAccount(ctx, address)
		assert.Nil(t, acct)
		assert.ErrorIs(t, err, types.ErrInvalidAccountOwner)
	})

	t.Run("mint data", func(t *testing.T) {
		_, c := newStubRPC(t, map[string]rpcHandler{
			MethodGetAccountInfo: accountResult(solana.TokenProgramID, 1_461_600, mintData(1, 6, true)),
		})

		acct, err := c.GetTokenAccount(ctx, address)
		assert.Nil(t, acct)
		assert.ErrorIs(t, err, types.ErrInvalidAccountOwner)
	})
}

func TestSolanaClientGetBalance(t *testing.T) {
	_, c := newStubRPC(t, map[string]rpcHandler{
		MethodGetBalance: func([]json.RawMessage) (any, *rpcError) {
			return contextResult(123_456_789), nil
		},
	})

	balance, err := c.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(123_456_789), balance)
}

func TestSolanaClientGetSignaturesForAddress(t *testing.T) {
	ok := solana.SignatureFromBytes(make([]byte, 64))
	failedBytes := make([]byte, 64)
	failedBytes[0] = 1
	failed := solana.SignatureFromBytes(failedBytes)
	beforeBytes := make([]byte, 64)
	beforeBytes[0] = 2
	before := solana.SignatureFromBytes(beforeBytes)

	stub, c := newStubRPC(t, map[string]rpcHandler{
		MethodGetSignatures: func([]json.RawMessage) (any, *rpcError) {
			return []map[string]any{
				{
					"signature":          ok.String(),
					"slot":               20,
					"err":                nil,
					"memo":               nil,
					"blockTime":          1_700_000_000,
					"confirmationStatus": "finalized",
				},
				{
					"signature":          failed.String(),
					"slot":               19,
					"err":                map[string]any{"InstructionError": []any{0, "Custom"}},
					"memo":               nil,
					"blockTime":          nil,
					"confirmationStatus": "confirmed",
				},
			}, nil
		},
	})

	address := solana.NewWallet().PublicKey()
	sigs, err := c.GetSignaturesForAddress(context.Background(), address, before, 2)
	require.NoError(t, err)
	require.Len(t, sigs, 2)

	assert.Equal(t, ok, sigs[0].Signature)
	assert.Equal(t, uint64(20), sigs[0].Slot)
	assert.False(t, sigs[0].Failed)
	require.NotNil(t, sigs[0].BlockTime)
	assert.Equal(t, int64(1_700_000_000), sigs[0].BlockTime.Unix())
	assert.Equal(t, "finalized", sigs[0].ConfirmationStatus)

	assert.Equal(t, failed, sigs[1].Signature)
	assert.True(t, sigs[1].Failed)
	assert.Nil(t, sigs[1].BlockTime)

	call, found := stub.lastCall(MethodGetSignatures)
	require.True(t, found)
	require.Len(t, call.Params, 2)
	var opts map[string]any
	require.NoError(t, json.Unmarshal(call.Params[1], &opts))
	assert.Equal(t, float64(2), opts["limit"])
	assert.Equal(t, before.String(), opts["before"])
}

func TestSolanaClientGetSignatureStatus(t *testing.T) {
	ctx := context.Background()
	sig := solana.SignatureFromBytes(make([]byte, 64))

	t.Run("unknown", func(t *testing.T) {
		_, c := newStubRPC(t, map[string]rpcHandler{
			MethodGetSignatureStatuses: func([]json.RawMessage) (any, *rpcError) {
				return contextResult([]any{nil}), nil
			},
		})

		status, err := c.GetSignatureStatus(ctx, sig)
		require.NoError(t, err)
		assert.Nil(t, status)
	})

	t.Run("landed", func(t *testing.T) {
		_, c := newStubRPC(t, map[string]rpcHandler{
			MethodGetSignatureStatuses: func([]json.RawMessage) (any, *rpcError) {
				return contextResult([]any{map[string]any{
					"slot":               42,
					"confirmations":      3,
					"err":                nil,
					"confirmationStatus": "confirmed",
				}}), nil
			},
		})

		status, err := c.GetSignatureStatus(ctx, sig)
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, uint64(42), status.Slot)
		require.NotNil(t, status.Confirmations)
		assert.Equal(t, uint64(3), *status.Confirmations)
		assert.Equal(t, "confirmed", status.ConfirmationStatus)
		assert.Nil(t, status.Err)
	})
}

func TestSolanaClientGetLatestBlockhash(t *testing.T) {
	want := solana.HashFromBytes(solana.NewWallet().PublicKey().Bytes())
	_, c := newStubRPC(t, map[string]rpcHandler{
		MethodGetLatestBlockhash: func([]json.RawMessage) (any, *rpcError) {
			return contextResult(map[string]any{
				"blockhash":            want.String(),
				"lastValidBlockHeight": 100,
			}), nil
		},
	})

	hash, err := c.GetLatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, hash)
}
