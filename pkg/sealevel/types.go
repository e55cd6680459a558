package sealevel

import (
	"github.com/gagliardetto/solana-go"
)

type Instruction struct {
	Accounts  []AccountMeta
	Data      []byte
	ProgramId solana.PublicKey
}

type AccountMeta struct {
	Pubkey     solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

func WritableMeta(pubkey solana.PublicKey) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsWritable: true}
}

func ReadonlyMeta(pubkey solana.PublicKey) AccountMeta {
	return AccountMeta{Pubkey: pubkey}
}

func WritableSignerMeta(pubkey solana.PublicKey) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: true, IsWritable: true}
}

func ReadonlySignerMeta(pubkey solana.PublicKey) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: true}
}

// InstructionAccount is an account as seen by the program executing an
// instruction, with the privileges granted to it for that invocation.
type InstructionAccount struct {
	Pubkey        solana.PublicKey
	IndexInCaller int
	IsSigner      bool
	IsWritable    bool
}
