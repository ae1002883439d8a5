package solana

import "net/url"

const explorerBase = "https://explorer.solana.com"

// IsMainnet reports whether network names the production cluster.
func IsMainnet(network string) bool {
	return network == "mainnet" || network == "mainnet-beta"
}

// ExplorerURL returns the block explorer page for a transaction signature.
// Non-mainnet networks get a cluster query parameter.
func ExplorerURL(network, signature string) string {
	return explorerLink("tx", network, signature)
}

// ExplorerAddressURL returns the block explorer page for an account.
func ExplorerAddressURL(network, address string) string {
	return explorerLink("address", network, address)
}

func explorerLink(kind, network, id string) string {
	u := explorerBase + "/" + kind + "/" + url.PathEscape(id)
	if network != "" && !IsMainnet(network) {
		u += "?cluster=" + url.QueryEscape(network)
	}
	return u
}
