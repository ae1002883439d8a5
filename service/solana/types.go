package solana

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Commitment levels reported by getSignatureStatuses.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// SignatureStatus is one entry of a getSignatureStatuses response.
type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

// Failed reports whether the node recorded an on-chain error.
func (s *SignatureStatus) Failed() bool {
	return len(s.Err) > 0 && string(s.Err) != "null"
}

// Confirmed reports whether the status reached confirmed or finalized.
func (s *SignatureStatus) Confirmed() bool {
	return s.ConfirmationStatus == CommitmentConfirmed || s.ConfirmationStatus == CommitmentFinalized
}

// LatestBlockhash is the value of a getLatestBlockhash response.
type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// AccountInfo is the value of a getAccountInfo response.
type AccountInfo struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [payload, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
	Space      uint64   `json:"space"`
}

// DecodedData returns the account data bytes.
func (a *AccountInfo) DecodedData() ([]byte, error) {
	if len(a.Data) == 0 {
		return nil, nil
	}
	if len(a.Data) > 1 && a.Data[1] != "base64" {
		return nil, fmt.Errorf("unsupported account data encoding %q", a.Data[1])
	}
	return base64.StdEncoding.DecodeString(a.Data[0])
}

// TransactionDetails is the subset of a getTransaction response used for
// operator inspection.
type TransactionDetails struct {
	Slot        uint64           `json:"slot"`
	BlockTime   *int64           `json:"blockTime"`
	Meta        *TransactionMeta `json:"meta"`
	Transaction struct {
		Signatures []string `json:"signatures"`
		Message    struct {
			AccountKeys     []string `json:"accountKeys"`
			RecentBlockhash string   `json:"recentBlockhash"`
		} `json:"message"`
	} `json:"transaction"`
}

// TransactionMeta carries the execution result of a transaction.
type TransactionMeta struct {
	Fee          uint64          `json:"fee"`
	Err          json.RawMessage `json:"err"`
	PreBalances  []uint64        `json:"preBalances"`
	PostBalances []uint64        `json:"postBalances"`
	LogMessages  []string        `json:"logMessages"`
}

// Time returns the block time, or the zero time when the node did not
// report one.
func (t *TransactionDetails) Time() time.Time {
	if t.BlockTime == nil {
		return time.Time{}
	}
	return time.Unix(*t.BlockTime, 0).UTC()
}

// Failed reports whether the transaction executed with an error.
func (t *TransactionDetails) Failed() bool {
	return t.Meta != nil && len(t.Meta.Err) > 0 && string(t.Meta.Err) != "null"
}

// contextual wraps RPC results of the form {"context": {...}, "value": ...}.
type contextual[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}
