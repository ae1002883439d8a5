package solana

import (
	"encoding/binary"
)

// systemTransferIndex is the System program's Transfer instruction tag.
const systemTransferIndex uint32 = 2

// AccountMeta describes how an instruction uses an account.
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation. Accounts are positional
// arguments to the program and keep the order given here.
type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// NewTransferInstruction moves lamports from one system account to another.
// Data is the u32 LE tag 2 followed by the u64 LE amount.
func NewTransferInstruction(from, to PublicKey, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: to, IsSigner: false, IsWritable: true},
		},
		Data: data,
	}
}

// NewMemoInstruction attaches a UTF-8 memo signed by signer.
func NewMemoInstruction(signer PublicKey, memo string) Instruction {
	return Instruction{
		ProgramID: MemoProgramID,
		Accounts: []AccountMeta{
			{PublicKey: signer, IsSigner: true, IsWritable: false},
		},
		Data: []byte(memo),
	}
}
