package solana

import (
	"encoding/base64"
)

// AssembleTransaction builds the wire transaction for a single-signer
// message: compact(1), the signature, then the message bytes. A message
// whose header asks for more than one signature is rejected.
func AssembleTransaction(sig Signature, message []byte) ([]byte, error) {
	if len(message) == 0 {
		return nil, newError(KindInvalidEncoding, "assemble transaction", "empty message")
	}
	if err := requireSingleSigner(message[0]); err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+SignatureLength+len(message))
	out, _ = AppendLength(out, 1)
	out = append(out, sig[:]...)
	return append(out, message...), nil
}

// requireSingleSigner checks the header's required signature count. Only
// the fee payer signs in this package.
func requireSingleSigner(numRequired uint8) error {
	if numRequired != 1 {
		return newError(KindInvalidEncoding, "assemble transaction", "message requires %d signatures, only the fee payer signs", numRequired)
	}
	return nil
}

// EncodeTransaction base64-encodes an assembled transaction for
// sendTransaction with encoding "base64".
func EncodeTransaction(tx []byte) string {
	return base64.StdEncoding.EncodeToString(tx)
}

// SignedTransaction is a compiled, signed transaction ready to submit.
type SignedTransaction struct {
	Message   []byte
	Signature Signature
	Wire      []byte
}

// Base64 returns the submission encoding of the transaction.
func (t *SignedTransaction) Base64() string { return EncodeTransaction(t.Wire) }

// BuildSignedTransaction compiles instructions for feePayer, signs the
// message with secret and assembles the result. feePayer must be the address
// secret derives.
func BuildSignedTransaction(feePayer PublicKey, instructions []Instruction, recentBlockhash string, secret []byte) (*SignedTransaction, error) {
	msg, err := CompileMessage(feePayer, instructions, recentBlockhash)
	if err != nil {
		return nil, err
	}
	if err := requireSingleSigner(msg.Header.NumRequiredSignatures); err != nil {
		return nil, err
	}
	raw, err := msg.MarshalBinary()
	if err != nil {
		return nil, err
	}
	sig, err := SignMessage(raw, secret, feePayer.String())
	if err != nil {
		return nil, err
	}
	wire, err := AssembleTransaction(sig, raw)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{Message: raw, Signature: sig, Wire: wire}, nil
}
