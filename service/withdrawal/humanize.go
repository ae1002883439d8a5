package withdrawal

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/brojonat/solwithdraw/service/solana"
)

const (
	redacted        = "[REDACTED]"
	maxReasonLength = 200
)

var (
	prefixedHexPattern = regexp.MustCompile(`0x[0-9a-fA-F]{64}`)
	hexRunPattern      = regexp.MustCompile(`[0-9a-fA-F]{64,}`)
	// base64 and base58 runs: keys, signatures, serialized transactions
	longRunPattern = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)
)

// Sanitize redacts key-sized hex and base64/base58 runs from msg and caps it
// at 200 characters.
func Sanitize(msg string) string {
	s := prefixedHexPattern.ReplaceAllString(msg, redacted)
	s = hexRunPattern.ReplaceAllString(s, redacted)
	s = longRunPattern.ReplaceAllString(s, redacted)
	if utf8.RuneCountInString(s) > maxReasonLength {
		runes := []rune(s)
		s = string(runes[:maxReasonLength]) + "..."
	}
	return s
}

// Messages shown to users. They never carry node output verbatim.
const (
	msgFeeFunds          = "Not enough SOL to pay for transaction fees. Please add more SOL to your wallet."
	msgChainFunds        = "Insufficient funds on the blockchain. Please ensure your wallet has enough balance to cover the transaction and network fees."
	msgInvalidAddress    = "Invalid destination address. Please check the address and try again."
	msgExpired           = "Transaction expired. Please try again."
	msgTimeout           = "Transaction confirmation timed out. The transaction may still be processing on the blockchain."
	msgWalletConfig      = "Wallet configuration error. Please contact support."
	msgNetwork           = "Network error while contacting the blockchain. Please try again."
	msgSenderMissing     = "The source wallet does not exist on the blockchain yet. Please fund it first."
	msgTooManyAccounts   = "The transaction references too many accounts."
	msgUnconfirmed       = "Transaction submitted but not confirmed in time. Its final status is unknown; check the explorer."
	msgSubmissionUnknown = "The network connection failed while submitting the transaction. It may still have been processed; check the explorer before trying again."
	msgOnChainFailure    = "The transaction failed on the blockchain. The transfer was not applied."
	msgGeneric           = "Could not process the withdrawal."
)

// HumanReadable maps a pipeline error to a message safe to show a user.
// Classification goes by error kind first, then by message patterns for
// errors relayed from the node.
func HumanReadable(err error) string {
	if err == nil {
		return ""
	}

	var ife *solana.InsufficientFundsError
	if errors.As(err, &ife) {
		return fmt.Sprintf("Insufficient funds in the source wallet: have %s SOL, need %s SOL (including network fee).",
			solana.LamportsToSOL(ife.Have), solana.LamportsToSOL(ife.Need))
	}
	if errors.Is(err, ErrSenderNotFound) {
		return msgSenderMissing
	}

	switch solana.KindOf(err) {
	case solana.KindInvalidAddress:
		return msgInvalidAddress
	case solana.KindInvalidBlockhash:
		return msgExpired
	case solana.KindKeyMismatch:
		return msgWalletConfig
	case solana.KindConfirmationTimeout:
		return msgTimeout
	case solana.KindTooManyAccounts:
		return msgTooManyAccounts
	case solana.KindRPCTransport:
		return msgNetwork
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "insufficientfundsforfee"):
		return msgFeeFunds
	case strings.Contains(lower, "insufficient") && strings.Contains(lower, "funds"):
		return msgChainFunds
	case strings.Contains(lower, "invalid") && strings.Contains(lower, "address"):
		return msgInvalidAddress
	case strings.Contains(lower, "blockhash") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "notfound") || strings.Contains(lower, "expired")):
		return msgExpired
	case strings.Contains(lower, "failed on-chain"):
		return msgOnChainFailure
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return msgTimeout
	case strings.Contains(lower, "private key") || strings.Contains(lower, "secret key"):
		return msgWalletConfig
	}

	if s := strings.TrimSpace(Sanitize(msg)); s != "" {
		return s
	}
	return msgGeneric
}
