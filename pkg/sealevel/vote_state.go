package sealevel

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// VoteStateV3Size is the data length of a vote account created by the vote
// program.
const VoteStateV3Size = 3762

const (
	VoteStateVersionV0_23_5 = iota
	VoteStateVersionV1_14_11
	VoteStateVersionCurrent
)

// VoteStateHeader is the prefix shared by the V1_14_11 and Current vote
// state layouts. Nothing past the authorized withdrawer is modelled.
type VoteStateHeader struct {
	Version              uint32
	NodePubkey           solana.PublicKey
	AuthorizedWithdrawer solana.PublicKey
}

func (header *VoteStateHeader) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	header.Version, err = decoder.ReadUint32(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Version when decoding VoteStateHeader: %w", err)
	}

	nodePubkey, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return fmt.Errorf("failed to read NodePubkey when decoding VoteStateHeader: %w", err)
	}
	copy(header.NodePubkey[:], nodePubkey)

	withdrawer, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return fmt.Errorf("failed to read AuthorizedWithdrawer when decoding VoteStateHeader: %w", err)
	}
	copy(header.AuthorizedWithdrawer[:], withdrawer)

	return nil
}

func (header *VoteStateHeader) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint32(header.Version, bin.LE)
	_ = encoder.WriteBytes(header.NodePubkey[:], false)
	return encoder.WriteBytes(header.AuthorizedWithdrawer[:], false)
}

// NewVoteAccountData lays out a vote account of the usual size carrying the
// given header, with everything past the header zeroed.
func NewVoteAccountData(header VoteStateHeader) []byte {
	buf := new(bytes.Buffer)
	_ = header.MarshalWithEncoder(bin.NewBinEncoder(buf))

	data := make([]byte, VoteStateV3Size)
	copy(data, buf.Bytes())
	return data
}

func unmarshalVoteStateHeader(data []byte) (*VoteStateHeader, error) {
	var header VoteStateHeader
	err := header.UnmarshalWithDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, err
	}
	if header.Version != VoteStateVersionV1_14_11 && header.Version != VoteStateVersionCurrent {
		return nil, InstrErrInvalidAccountData
	}
	return &header, nil
}
