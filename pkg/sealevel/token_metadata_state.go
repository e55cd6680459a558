package sealevel

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	pda "go.firedancer.io/singlepool/pkg/solana"
)

const (
	MetadataKeyMetadataV1 = 4

	// MetadataMaxLen is the allocated size of every metadata account.
	MetadataMaxLen = 679

	MetadataMaxNameLen   = 32
	MetadataMaxSymbolLen = 10
	MetadataMaxUriLen    = 200

	MetadataTokenStandardFungible = 2
)

const MetadataSeedPrefix = "metadata"

// DataV2 is the descriptive part of a metadata account.
type DataV2 struct {
	Name                 string
	Symbol               string
	Uri                  string
	SellerFeeBasisPoints uint16
}

type TokenMetadata struct {
	Key                 byte
	UpdateAuthority     solana.PublicKey
	Mint                solana.PublicKey
	Data                DataV2
	PrimarySaleHappened bool
	IsMutable           bool
	TokenStandard       *byte
}

func readBorshString(decoder *bin.Decoder) (string, error) {
	length, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return "", err
	}
	if length > uint32(decoder.Remaining()) {
		return "", fmt.Errorf("string length %d exceeds remaining %d bytes", length, decoder.Remaining())
	}
	b, err := decoder.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeBorshString(encoder *bin.Encoder, s string) error {
	_ = encoder.WriteUint32(uint32(len(s)), bin.LE)
	return encoder.WriteBytes([]byte(s), false)
}

// readBorshNone reads an option tag that must be None.
func readBorshNone(decoder *bin.Decoder) error {
	tag, err := decoder.ReadByte()
	if err != nil {
		return err
	}
	if tag != 0 {
		return invalidEnumValue
	}
	return nil
}

// UnmarshalWithDecoder reads a DataV2 as carried by metadata instructions.
// Creators, collection and uses must all be None.
func (data *DataV2) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	data.Name, err = readBorshString(decoder)
	if err != nil {
		return fmt.Errorf("failed to read Name when decoding DataV2: %w", err)
	}
	data.Symbol, err = readBorshString(decoder)
	if err != nil {
		return fmt.Errorf("failed to read Symbol when decoding DataV2: %w", err)
	}
	data.Uri, err = readBorshString(decoder)
	if err != nil {
		return fmt.Errorf("failed to read Uri when decoding DataV2: %w", err)
	}
	data.SellerFeeBasisPoints, err = decoder.ReadUint16(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read SellerFeeBasisPoints when decoding DataV2: %w", err)
	}

	for _, field := range []string{"Creators", "Collection", "Uses"} {
		err = readBorshNone(decoder)
		if err != nil {
			return fmt.Errorf("failed to read %s when decoding DataV2: %w", field, err)
		}
	}
	return nil
}

func (data *DataV2) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = writeBorshString(encoder, data.Name)
	_ = writeBorshString(encoder, data.Symbol)
	_ = writeBorshString(encoder, data.Uri)
	_ = encoder.WriteUint16(data.SellerFeeBasisPoints, bin.LE)
	// creators, collection, uses
	_ = encoder.WriteByte(0)
	_ = encoder.WriteByte(0)
	return encoder.WriteByte(0)
}

func (md *TokenMetadata) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	md.Key, err = decoder.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read Key when decoding TokenMetadata: %w", err)
	}
	if md.Key != MetadataKeyMetadataV1 {
		return invalidEnumValue
	}

	pk, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return fmt.Errorf("failed to read UpdateAuthority when decoding TokenMetadata: %w", err)
	}
	copy(md.UpdateAuthority[:], pk)

	pk, err = decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return fmt.Errorf("failed to read Mint when decoding TokenMetadata: %w", err)
	}
	copy(md.Mint[:], pk)

	md.Data.Name, err = readBorshString(decoder)
	if err != nil {
		return fmt.Errorf("failed to read Name when decoding TokenMetadata: %w", err)
	}
	md.Data.Symbol, err = readBorshString(decoder)
	if err != nil {
		return fmt.Errorf("failed to read Symbol when decoding TokenMetadata: %w", err)
	}
	md.Data.Uri, err = readBorshString(decoder)
	if err != nil {
		return fmt.Errorf("failed to read Uri when decoding TokenMetadata: %w", err)
	}
	md.Data.SellerFeeBasisPoints, err = decoder.ReadUint16(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read SellerFeeBasisPoints when decoding TokenMetadata: %w", err)
	}

	// creators
	err = readBorshNone(decoder)
	if err != nil {
		return err
	}

	md.PrimarySaleHappened, err = decoder.ReadBool()
	if err != nil {
		return fmt.Errorf("failed to read PrimarySaleHappened when decoding TokenMetadata: %w", err)
	}
	md.IsMutable, err = decoder.ReadBool()
	if err != nil {
		return fmt.Errorf("failed to read IsMutable when decoding TokenMetadata: %w", err)
	}

	// edition nonce
	err = readBorshNone(decoder)
	if err != nil {
		return err
	}

	hasTokenStandard, err := decoder.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read TokenStandard when decoding TokenMetadata: %w", err)
	}
	if hasTokenStandard == 1 {
		tokenStandard, err := decoder.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read TokenStandard when decoding TokenMetadata: %w", err)
		}
		md.TokenStandard = &tokenStandard
	}
	return nil
}

func (md *TokenMetadata) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteByte(md.Key)
	_ = encoder.WriteBytes(md.UpdateAuthority[:], false)
	_ = encoder.WriteBytes(md.Mint[:], false)
	_ = writeBorshString(encoder, md.Data.Name)
	_ = writeBorshString(encoder, md.Data.Symbol)
	_ = writeBorshString(encoder, md.Data.Uri)
	_ = encoder.WriteUint16(md.Data.SellerFeeBasisPoints, bin.LE)
	_ = encoder.WriteByte(0) // creators
	_ = encoder.WriteBool(md.PrimarySaleHappened)
	_ = encoder.WriteBool(md.IsMutable)
	_ = encoder.WriteByte(0) // edition nonce
	if md.TokenStandard != nil {
		_ = encoder.WriteByte(1)
		_ = encoder.WriteByte(*md.TokenStandard)
	} else {
		_ = encoder.WriteByte(0)
	}
	// collection, uses, collection details, programmable config
	for i := 0; i < 4; i++ {
		_ = encoder.WriteByte(0)
	}
	return nil
}

func (md *TokenMetadata) Marshal() []byte {
	buf := new(bytes.Buffer)
	_ = md.MarshalWithEncoder(bin.NewBinEncoder(buf))
	data := make([]byte, MetadataMaxLen)
	copy(data, buf.Bytes())
	return data
}

func UnmarshalTokenMetadata(data []byte) (*TokenMetadata, error) {
	md := new(TokenMetadata)
	err := md.UnmarshalWithDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, err
	}
	return md, nil
}

func metadataSeeds(mint solana.PublicKey) [][]byte {
	return [][]byte{[]byte(MetadataSeedPrefix), TokenMetadataProgramAddr[:], mint[:]}
}

// FindMetadataAddress derives the metadata account of mint.
func FindMetadataAddress(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := pda.FindProgramAddressBytes(metadataSeeds(mint), TokenMetadataProgramAddr[:])
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	return solana.PublicKeyFromBytes(addr), bump, nil
}
