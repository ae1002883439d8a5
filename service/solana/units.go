package solana

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

const solDecimals = 9

// LamportsToSOL formats lamports as a decimal SOL amount without trailing
// zeros, e.g. 1500000000 -> "1.5".
func LamportsToSOL(lamports uint64) string {
	whole := lamports / LamportsPerSOL
	frac := lamports % LamportsPerSOL
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fracStr := fmt.Sprintf("%0*d", solDecimals, frac)
	return strconv.FormatUint(whole, 10) + "." + strings.TrimRight(fracStr, "0")
}

// SOLToLamports parses a decimal SOL amount exactly. More than nine decimal
// places, signs, and values that overflow uint64 are rejected.
func SOLToLamports(sol string) (uint64, error) {
	s := strings.TrimSpace(sol)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	wholeStr, fracStr, hasDot := strings.Cut(s, ".")
	if wholeStr == "" {
		wholeStr = "0"
	}
	if hasDot && fracStr == "" {
		return 0, fmt.Errorf("invalid amount %q", sol)
	}
	if len(fracStr) > solDecimals {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", sol, solDecimals)
	}
	if !isDigits(wholeStr) || !isDigits(fracStr) {
		return 0, fmt.Errorf("invalid amount %q", sol)
	}

	whole, err := strconv.ParseUint(wholeStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", sol, err)
	}
	if whole > math.MaxUint64/LamportsPerSOL {
		return 0, fmt.Errorf("amount %q is too large", sol)
	}

	var frac uint64
	if fracStr != "" {
		frac, err = strconv.ParseUint(fracStr+strings.Repeat("0", solDecimals-len(fracStr)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", sol, err)
		}
	}

	total := whole * LamportsPerSOL
	if total > math.MaxUint64-frac {
		return 0, fmt.Errorf("amount %q is too large", sol)
	}
	return total + frac, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
