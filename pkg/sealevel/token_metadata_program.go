package sealevel

import (
	"errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/safemath"
	"k8s.io/klog/v2"
)

const (
	MetadataInstrTypeUpdateMetadataAccountV2 = 15
	MetadataInstrTypeCreateMetadataAccountV3 = 33
)

const MetadataMaxBasisPoints = 10_000

// metadata program errors
var (
	MetadataErrInvalidMetadataKey                = errors.New("MetadataErrInvalidMetadataKey")
	MetadataErrAlreadyInitialized                = errors.New("MetadataErrAlreadyInitialized")
	MetadataErrUninitialized                     = errors.New("MetadataErrUninitialized")
	MetadataErrInvalidMintAuthority              = errors.New("MetadataErrInvalidMintAuthority")
	MetadataErrNameTooLong                       = errors.New("MetadataErrNameTooLong")
	MetadataErrSymbolTooLong                     = errors.New("MetadataErrSymbolTooLong")
	MetadataErrUriTooLong                        = errors.New("MetadataErrUriTooLong")
	MetadataErrInvalidBasisPoints                = errors.New("MetadataErrInvalidBasisPoints")
	MetadataErrUpdateAuthorityIncorrect          = errors.New("MetadataErrUpdateAuthorityIncorrect")
	MetadataErrUpdateAuthorityIsNotSigner        = errors.New("MetadataErrUpdateAuthorityIsNotSigner")
	MetadataErrDataIsImmutable                   = errors.New("MetadataErrDataIsImmutable")
	MetadataErrIsMutableCanOnlyBeFlippedToFalse  = errors.New("MetadataErrIsMutableCanOnlyBeFlippedToFalse")
	MetadataErrPrimarySaleCanOnlyBeFlippedToTrue = errors.New("MetadataErrPrimarySaleCanOnlyBeFlippedToTrue")
)

type MetadataInstrCreateV3 struct {
	Data      DataV2
	IsMutable bool
}

type MetadataInstrUpdateV2 struct {
	Data                *DataV2
	UpdateAuthority     *solana.PublicKey
	PrimarySaleHappened *bool
	IsMutable           *bool
}

func (instr *MetadataInstrCreateV3) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := instr.Data.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}
	instr.IsMutable, err = decoder.ReadBool()
	if err != nil {
		return err
	}
	// collection details
	return readBorshNone(decoder)
}

func (instr *MetadataInstrCreateV3) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteByte(MetadataInstrTypeCreateMetadataAccountV3)
	_ = instr.Data.MarshalWithEncoder(encoder)
	_ = encoder.WriteBool(instr.IsMutable)
	return encoder.WriteByte(0)
}

func readOptionalBool(decoder *bin.Decoder) (*bool, error) {
	tag, err := decoder.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return nil, nil
	case 1:
		v, err := decoder.ReadBool()
		if err != nil {
			return nil, err
		}
		return &v, nil
	}
	return nil, invalidEnumValue
}

func writeOptionalBool(encoder *bin.Encoder, v *bool) {
	if v == nil {
		_ = encoder.WriteByte(0)
		return
	}
	_ = encoder.WriteByte(1)
	_ = encoder.WriteBool(*v)
}

func (instr *MetadataInstrUpdateV2) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	tag, err := decoder.ReadByte()
	if err != nil {
		return err
	}
	switch tag {
	case 0:
	case 1:
		instr.Data = new(DataV2)
		err = instr.Data.UnmarshalWithDecoder(decoder)
		if err != nil {
			return err
		}
	default:
		return invalidEnumValue
	}

	tag, err = decoder.ReadByte()
	if err != nil {
		return err
	}
	switch tag {
	case 0:
	case 1:
		pk, err := decoder.ReadBytes(solana.PublicKeyLength)
		if err != nil {
			return err
		}
		updateAuthority := solana.PublicKeyFromBytes(pk)
		instr.UpdateAuthority = &updateAuthority
	default:
		return invalidEnumValue
	}

	instr.PrimarySaleHappened, err = readOptionalBool(decoder)
	if err != nil {
		return err
	}
	instr.IsMutable, err = readOptionalBool(decoder)
	return err
}

func (instr *MetadataInstrUpdateV2) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteByte(MetadataInstrTypeUpdateMetadataAccountV2)
	if instr.Data != nil {
		_ = encoder.WriteByte(1)
		_ = instr.Data.MarshalWithEncoder(encoder)
	} else {
		_ = encoder.WriteByte(0)
	}
	if instr.UpdateAuthority != nil {
		_ = encoder.WriteByte(1)
		_ = encoder.WriteBytes(instr.UpdateAuthority[:], false)
	} else {
		_ = encoder.WriteByte(0)
	}
	writeOptionalBool(encoder, instr.PrimarySaleHappened)
	writeOptionalBool(encoder, instr.IsMutable)
	return nil
}

func NewCreateMetadataAccountV3Instruction(metadata, mint, mintAuthority, payer, updateAuthority solana.PublicKey, data DataV2, isMutable bool) Instruction {
	instr := MetadataInstrCreateV3{Data: data, IsMutable: isMutable}
	return Instruction{
		Accounts: []AccountMeta{
			WritableMeta(metadata),
			ReadonlyMeta(mint),
			ReadonlySignerMeta(mintAuthority),
			WritableSignerMeta(payer),
			ReadonlyMeta(updateAuthority),
			ReadonlyMeta(SystemProgramAddr),
		},
		Data:      encodeInstrData(&instr),
		ProgramId: TokenMetadataProgramAddr,
	}
}

func NewUpdateMetadataAccountV2Instruction(metadata, updateAuthority solana.PublicKey, newUpdateAuthority *solana.PublicKey, data *DataV2, primarySaleHappened *bool, isMutable *bool) Instruction {
	instr := MetadataInstrUpdateV2{
		Data:                data,
		UpdateAuthority:     newUpdateAuthority,
		PrimarySaleHappened: primarySaleHappened,
		IsMutable:           isMutable,
	}
	return Instruction{
		Accounts:  []AccountMeta{WritableMeta(metadata), ReadonlySignerMeta(updateAuthority)},
		Data:      encodeInstrData(&instr),
		ProgramId: TokenMetadataProgramAddr,
	}
}

func TokenMetadataProgramExecute(execCtx *ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUMetadataProgramComputeUnits)
	if err != nil {
		return InstrErrComputationalBudgetExceeded
	}

	instrCtx, err := execCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	decoder := bin.NewBinDecoder(instrCtx.Data)
	instructionType, err := decoder.ReadByte()
	if err != nil {
		return InstrErrInvalidInstructionData
	}

	switch instructionType {
	case MetadataInstrTypeCreateMetadataAccountV3:
		{
			execCtx.Logf("IX: Create Metadata Accounts v3")
			var create MetadataInstrCreateV3
			err = create.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			return MetadataProgramCreateV3(execCtx, instrCtx, &create)
		}

	case MetadataInstrTypeUpdateMetadataAccountV2:
		{
			execCtx.Logf("IX: Update Metadata Accounts v2")
			var update MetadataInstrUpdateV2
			err = update.UnmarshalWithDecoder(decoder)
			if err != nil {
				return InstrErrInvalidInstructionData
			}
			return MetadataProgramUpdateV2(instrCtx, &update)
		}
	}

	klog.Errorf("unsupported metadata instruction %d", instructionType)
	return InstrErrInvalidInstructionData
}

func validateMetadataData(data *DataV2) error {
	if len(data.Name) > MetadataMaxNameLen {
		return MetadataErrNameTooLong
	}
	if len(data.Symbol) > MetadataMaxSymbolLen {
		return MetadataErrSymbolTooLong
	}
	if len(data.Uri) > MetadataMaxUriLen {
		return MetadataErrUriTooLong
	}
	if data.SellerFeeBasisPoints > MetadataMaxBasisPoints {
		return MetadataErrInvalidBasisPoints
	}
	return nil
}

func MetadataProgramCreateV3(execCtx *ExecutionCtx, instrCtx *InstructionCtx, create *MetadataInstrCreateV3) error {
	err := instrCtx.CheckNumOfInstructionAccounts(6)
	if err != nil {
		return err
	}

	metadataAcct, err := instrCtx.BorrowInstructionAccount(0)
	if err != nil {
		return err
	}
	mintAcct, err := instrCtx.BorrowInstructionAccount(1)
	if err != nil {
		return err
	}
	mintAuthority, err := instrCtx.KeyOfAccountAtIndex(2)
	if err != nil {
		return err
	}
	payer, err := instrCtx.KeyOfAccountAtIndex(3)
	if err != nil {
		return err
	}
	updateAuthority, err := instrCtx.KeyOfAccountAtIndex(4)
	if err != nil {
		return err
	}
	err = checkAcctForSysvar(instrCtx, 5, SystemProgramAddr)
	if err != nil {
		return InstrErrIncorrectProgramId
	}

	mintKey := mintAcct.Key()
	expected, bump, err := FindMetadataAddress(mintKey)
	if err != nil {
		return err
	}
	if metadataAcct.Key() != expected {
		klog.Errorf("metadata account %s, expected %s", metadataAcct.Key(), expected)
		return MetadataErrInvalidMetadataKey
	}
	if metadataAcct.Owner() != SystemProgramAddr || len(metadataAcct.Data()) != 0 {
		return MetadataErrAlreadyInitialized
	}

	mint, err := getTokenMint(mintAcct)
	if err != nil {
		return err
	}
	if !mint.MintAuthority.Present || mint.MintAuthority.Pubkey != mintAuthority {
		return MetadataErrInvalidMintAuthority
	}
	isSigner, err := instrCtx.IsInstructionAccountSigner(2)
	if err != nil {
		return err
	}
	if !isSigner {
		return InstrErrMissingRequiredSignature
	}

	err = validateMetadataData(&create.Data)
	if err != nil {
		return err
	}

	signerSeeds := [][][]byte{append(metadataSeeds(mintKey), []byte{bump})}
	rentExempt := execCtx.SysvarCache.GetRent().MinimumBalance(MetadataMaxLen)

	if metadataAcct.Lamports() == 0 {
		err = execCtx.InvokeSigned(NewCreateAccountInstruction(payer, expected, rentExempt, MetadataMaxLen, TokenMetadataProgramAddr), signerSeeds)
		if err != nil {
			return err
		}
	} else {
		deficit := safemath.SaturatingSubU64(rentExempt, metadataAcct.Lamports())
		if deficit > 0 {
			err = execCtx.NativeInvoke(NewTransferInstruction(payer, expected, deficit), nil)
			if err != nil {
				return err
			}
		}
		err = execCtx.InvokeSigned(NewAllocateInstruction(expected, MetadataMaxLen), signerSeeds)
		if err != nil {
			return err
		}
		err = execCtx.InvokeSigned(NewAssignInstruction(expected, TokenMetadataProgramAddr), signerSeeds)
		if err != nil {
			return err
		}
	}

	tokenStandard := byte(MetadataTokenStandardFungible)
	md := TokenMetadata{
		Key:             MetadataKeyMetadataV1,
		UpdateAuthority: updateAuthority,
		Mint:            mintKey,
		Data:            create.Data,
		IsMutable:       create.IsMutable,
		TokenStandard:   &tokenStandard,
	}
	return metadataAcct.SetState(md.Marshal())
}

func MetadataProgramUpdateV2(instrCtx *InstructionCtx, update *MetadataInstrUpdateV2) error {
	err := instrCtx.CheckNumOfInstructionAccounts(2)
	if err != nil {
		return err
	}

	metadataAcct, err := instrCtx.BorrowInstructionAccount(0)
	if err != nil {
		return err
	}
	if metadataAcct.Owner() != TokenMetadataProgramAddr {
		return InstrErrIncorrectProgramId
	}

	md, err := UnmarshalTokenMetadata(metadataAcct.Data())
	if err != nil {
		return MetadataErrUninitialized
	}

	updateAuthority, err := instrCtx.KeyOfAccountAtIndex(1)
	if err != nil {
		return err
	}
	if updateAuthority != md.UpdateAuthority {
		return MetadataErrUpdateAuthorityIncorrect
	}
	isSigner, err := instrCtx.IsInstructionAccountSigner(1)
	if err != nil {
		return err
	}
	if !isSigner {
		return MetadataErrUpdateAuthorityIsNotSigner
	}

	if update.Data != nil {
		if !md.IsMutable {
			return MetadataErrDataIsImmutable
		}
		err = validateMetadataData(update.Data)
		if err != nil {
			return err
		}
		md.Data = *update.Data
	}

	if update.UpdateAuthority != nil {
		md.UpdateAuthority = *update.UpdateAuthority
	}

	if update.PrimarySaleHappened != nil {
		if !*update.PrimarySaleHappened && md.PrimarySaleHappened {
			return MetadataErrPrimarySaleCanOnlyBeFlippedToTrue
		}
		md.PrimarySaleHappened = *update.PrimarySaleHappened
	}

	if update.IsMutable != nil {
		if *update.IsMutable && !md.IsMutable {
			return MetadataErrIsMutableCanOnlyBeFlippedToFalse
		}
		md.IsMutable = *update.IsMutable
	}

	return metadataAcct.SetState(md.Marshal())
}
