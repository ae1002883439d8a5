package solana

import (
	"errors"
	"fmt"
	"strings"
)

// rpcErrorPattern maps a substring of a node error message to a sentence a
// user can act on.
type rpcErrorPattern struct {
	substring string
	readable  string
}

// rpcErrorPatterns is checked in order; the first case-insensitive match wins.
var rpcErrorPatterns = []rpcErrorPattern{
	{"AccountNotFound", "Account does not exist on the blockchain"},
	{"InsufficientFunds", "Insufficient funds for transaction"},
	{"InvalidAccountData", "Invalid account data"},
	{"InvalidArgument", "Invalid argument provided"},
	{"InvalidInstruction", "Invalid instruction"},
	{"BlockhashNotFound", "Blockhash expired, please retry"},
	{"Blockhash not found", "Blockhash expired, please retry"},
	{"SignatureVerificationFailed", "Signature verification failed - check private key"},
}

// TranslateRPCError turns a JSON-RPC error code and message into a readable
// description. Unknown messages keep the code for the logs.
func TranslateRPCError(code int, message string) string {
	if message == "" {
		message = "Unknown error"
	}
	lower := strings.ToLower(message)
	for _, p := range rpcErrorPatterns {
		if strings.Contains(lower, strings.ToLower(p.substring)) {
			return p.readable + ": " + message
		}
	}
	return fmt.Sprintf("Solana RPC Error (code: %d): %s", code, message)
}

// IsBlockhashExpired reports whether err is a node rejection caused by a
// stale blockhash. The caller may retry with a freshly fetched one.
func IsBlockhashExpired(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindRPCLogic {
		return false
	}
	return strings.Contains(strings.ToLower(e.Message), "blockhashnotfound") ||
		strings.Contains(strings.ToLower(e.Message), "blockhash expired")
}
