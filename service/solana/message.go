package solana

import (
	"bytes"
	"fmt"
)

// CompiledInstruction is an instruction rewritten in terms of account table
// indices.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndices []uint8
	Data           []byte
}

// Message is a legacy (unversioned) transaction message.
type Message struct {
	Header          MessageHeader
	AccountKeys     []PublicKey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

// CompileMessage resolves accounts for feePayer and instructions and compiles
// them against recentBlockhash, which must decode to exactly 32 bytes.
func CompileMessage(feePayer PublicKey, instructions []Instruction, recentBlockhash string) (*Message, error) {
	blockhash, err := HashFromBase58(recentBlockhash)
	if err != nil {
		return nil, err
	}
	resolved, err := ResolveAccounts(feePayer, instructions)
	if err != nil {
		return nil, err
	}
	return CompileResolved(resolved, blockhash, instructions)
}

// CompileResolved compiles instructions against an already resolved account
// table. Per-instruction account order is kept as given.
func CompileResolved(resolved *ResolvedAccounts, blockhash Hash, instructions []Instruction) (*Message, error) {
	msg := &Message{
		Header:          resolved.Header(),
		AccountKeys:     resolved.Keys(),
		RecentBlockhash: blockhash,
		Instructions:    make([]CompiledInstruction, 0, len(instructions)),
	}
	for i, ix := range instructions {
		programIdx, ok := resolved.IndexOf(ix.ProgramID)
		if !ok {
			return nil, fmt.Errorf("instruction %d: program %s missing from account table", i, ix.ProgramID)
		}
		compiled := CompiledInstruction{
			ProgramIDIndex: uint8(programIdx),
			AccountIndices: make([]uint8, len(ix.Accounts)),
			Data:           ix.Data,
		}
		for j, meta := range ix.Accounts {
			idx, ok := resolved.IndexOf(meta.PublicKey)
			if !ok {
				return nil, fmt.Errorf("instruction %d: account %s missing from account table", i, meta.PublicKey)
			}
			compiled.AccountIndices[j] = uint8(idx)
		}
		msg.Instructions = append(msg.Instructions, compiled)
	}
	return msg, nil
}

// MarshalBinary serializes the message in the legacy wire layout:
// header, compact account keys, blockhash, compact instructions.
func (m *Message) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(3 + 1 + len(m.AccountKeys)*PublicKeyLength + HashLength + 64)

	buf.WriteByte(m.Header.NumRequiredSignatures)
	buf.WriteByte(m.Header.NumReadonlySignedAccounts)
	buf.WriteByte(m.Header.NumReadonlyUnsignedAccounts)

	if err := writeLength(&buf, len(m.AccountKeys)); err != nil {
		return nil, fmt.Errorf("account keys: %w", err)
	}
	for _, key := range m.AccountKeys {
		buf.Write(key[:])
	}

	buf.Write(m.RecentBlockhash[:])

	if err := writeLength(&buf, len(m.Instructions)); err != nil {
		return nil, fmt.Errorf("instructions: %w", err)
	}
	for i, ix := range m.Instructions {
		buf.WriteByte(ix.ProgramIDIndex)
		if err := writeLength(&buf, len(ix.AccountIndices)); err != nil {
			return nil, fmt.Errorf("instruction %d accounts: %w", i, err)
		}
		buf.Write(ix.AccountIndices)
		if err := writeLength(&buf, len(ix.Data)); err != nil {
			return nil, fmt.Errorf("instruction %d data: %w", i, err)
		}
		buf.Write(ix.Data)
	}
	return buf.Bytes(), nil
}

func writeLength(buf *bytes.Buffer, n int) error {
	prefix, err := EncodeLength(n)
	if err != nil {
		return err
	}
	buf.Write(prefix)
	return nil
}
