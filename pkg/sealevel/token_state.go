package sealevel

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	TokenMintSize    = 82
	TokenAccountSize = 165
)

const (
	TokenAccountStateUninitialized = iota
	TokenAccountStateInitialized
	TokenAccountStateFrozen
)

// COptionPubkey is a fixed-width optional pubkey: a u32 tag followed by 32
// bytes that are zero when the tag is zero.
type COptionPubkey struct {
	Present bool
	Pubkey  solana.PublicKey
}

func SomePubkey(pubkey solana.PublicKey) COptionPubkey {
	return COptionPubkey{Present: true, Pubkey: pubkey}
}

func (opt *COptionPubkey) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	tag, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	switch tag {
	case 0:
		opt.Present = false
		opt.Pubkey = solana.PublicKey{}
	case 1:
		opt.Present = true
		copy(opt.Pubkey[:], pk)
	default:
		return invalidEnumValue
	}
	return nil
}

func (opt *COptionPubkey) MarshalWithEncoder(encoder *bin.Encoder) error {
	if !opt.Present {
		_ = encoder.WriteUint32(0, bin.LE)
		return encoder.WriteBytes(make([]byte, solana.PublicKeyLength), false)
	}
	_ = encoder.WriteUint32(1, bin.LE)
	return encoder.WriteBytes(opt.Pubkey[:], false)
}

type TokenMint struct {
	MintAuthority   COptionPubkey
	Supply          uint64
	Decimals        byte
	IsInitialized   bool
	FreezeAuthority COptionPubkey
}

type TokenAccount struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        COptionPubkey
	State           byte
	IsNative        bool
	NativeReserve   uint64
	DelegatedAmount uint64
	CloseAuthority  COptionPubkey
}

func (mint *TokenMint) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := mint.MintAuthority.UnmarshalWithDecoder(decoder)
	if err != nil {
		return fmt.Errorf("failed to read MintAuthority when decoding TokenMint: %w", err)
	}

	mint.Supply, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Supply when decoding TokenMint: %w", err)
	}

	mint.Decimals, err = decoder.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read Decimals when decoding TokenMint: %w", err)
	}

	mint.IsInitialized, err = decoder.ReadBool()
	if err != nil {
		return fmt.Errorf("failed to read IsInitialized when decoding TokenMint: %w", err)
	}

	err = mint.FreezeAuthority.UnmarshalWithDecoder(decoder)
	if err != nil {
		return fmt.Errorf("failed to read FreezeAuthority when decoding TokenMint: %w", err)
	}
	return nil
}

func (mint *TokenMint) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = mint.MintAuthority.MarshalWithEncoder(encoder)
	_ = encoder.WriteUint64(mint.Supply, bin.LE)
	_ = encoder.WriteByte(mint.Decimals)
	_ = encoder.WriteBool(mint.IsInitialized)
	return mint.FreezeAuthority.MarshalWithEncoder(encoder)
}

func (acct *TokenAccount) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	mint, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return fmt.Errorf("failed to read Mint when decoding TokenAccount: %w", err)
	}
	copy(acct.Mint[:], mint)

	owner, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return fmt.Errorf("failed to read Owner when decoding TokenAccount: %w", err)
	}
	copy(acct.Owner[:], owner)

	acct.Amount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Amount when decoding TokenAccount: %w", err)
	}

	err = acct.Delegate.UnmarshalWithDecoder(decoder)
	if err != nil {
		return fmt.Errorf("failed to read Delegate when decoding TokenAccount: %w", err)
	}

	acct.State, err = decoder.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read State when decoding TokenAccount: %w", err)
	}
	if acct.State > TokenAccountStateFrozen {
		return invalidEnumValue
	}

	isNative, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read IsNative when decoding TokenAccount: %w", err)
	}
	acct.IsNative = isNative == 1
	acct.NativeReserve, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read NativeReserve when decoding TokenAccount: %w", err)
	}

	acct.DelegatedAmount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read DelegatedAmount when decoding TokenAccount: %w", err)
	}

	err = acct.CloseAuthority.UnmarshalWithDecoder(decoder)
	if err != nil {
		return fmt.Errorf("failed to read CloseAuthority when decoding TokenAccount: %w", err)
	}
	return nil
}

func (acct *TokenAccount) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteBytes(acct.Mint[:], false)
	_ = encoder.WriteBytes(acct.Owner[:], false)
	_ = encoder.WriteUint64(acct.Amount, bin.LE)
	_ = acct.Delegate.MarshalWithEncoder(encoder)
	_ = encoder.WriteByte(acct.State)
	if acct.IsNative {
		_ = encoder.WriteUint32(1, bin.LE)
	} else {
		_ = encoder.WriteUint32(0, bin.LE)
	}
	_ = encoder.WriteUint64(acct.NativeReserve, bin.LE)
	_ = encoder.WriteUint64(acct.DelegatedAmount, bin.LE)
	return acct.CloseAuthority.MarshalWithEncoder(encoder)
}

func (acct *TokenAccount) IsFrozen() bool {
	return acct.State == TokenAccountStateFrozen
}

func UnmarshalTokenMint(data []byte) (*TokenMint, error) {
	if len(data) != TokenMintSize {
		return nil, InstrErrInvalidAccountData
	}
	mint := new(TokenMint)
	err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, err
	}
	return mint, nil
}

func UnmarshalTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, InstrErrInvalidAccountData
	}
	acct := new(TokenAccount)
	err := acct.UnmarshalWithDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func marshalTokenState(state instrEncoder, size int) []byte {
	buf := new(bytes.Buffer)
	_ = state.MarshalWithEncoder(bin.NewBinEncoder(buf))
	data := make([]byte, size)
	copy(data, buf.Bytes())
	return data
}

func (mint *TokenMint) Marshal() []byte {
	return marshalTokenState(mint, TokenMintSize)
}

func (acct *TokenAccount) Marshal() []byte {
	return marshalTokenState(acct, TokenAccountSize)
}
