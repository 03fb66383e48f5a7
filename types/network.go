package types

import "github.com/gagliardetto/solana-go/rpc"

// Network represents a Solana cluster
type Network string

const (
	NetworkMainnet  Network = "solana-mainnet"
	NetworkDevnet   Network = "solana-devnet"  // testnet
	NetworkTestnet  Network = "solana-testnet" // testnet
	NetworkLocalnet Network = "solana-localnet"
)

// IsTestnet reports whether the cluster holds valueless funds.
func (n Network) IsTestnet() bool {
	return n == NetworkDevnet || n == NetworkTestnet || n == NetworkLocalnet
}

// IsValid reports whether n is a known cluster.
func (n Network) IsValid() bool {
	switch n {
	case NetworkMainnet, NetworkDevnet, NetworkTestnet, NetworkLocalnet:
		return true
	}
	return false
}

// RPCEndpoint returns the public JSON-RPC endpoint of the cluster.
func (n Network) RPCEndpoint() string {
	switch n {
	case NetworkDevnet:
		return rpc.DevNet_RPC
	case NetworkTestnet:
		return rpc.TestNet_RPC
	case NetworkLocalnet:
		return rpc.LocalNet_RPC
	default:
		return rpc.MainNetBeta_RPC
	}
}

// ExplorerURL links a transaction signature on the Solana explorer.
func (n Network) ExplorerURL(signature string) string {
	url := "https://explorer.solana.com/tx/" + signature
	switch n {
	case NetworkDevnet:
		return url + "?cluster=devnet"
	case NetworkTestnet:
		return url + "?cluster=testnet"
	case NetworkLocalnet:
		return url + "?cluster=custom"
	default:
		return url
	}
}

func (n Network) String() string {
	return string(n)
}
