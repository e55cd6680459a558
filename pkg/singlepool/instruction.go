package singlepool

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/sealevel"
)

const (
	InstrTypeInitializePool = iota
	InstrTypeDepositStake
	InstrTypeWithdrawStake
	InstrTypeCreateTokenMetadata
	InstrTypeUpdateTokenMetadata
)

// Instruction is a decoded single pool instruction.
type Instruction interface {
	Name() string
	MarshalWithEncoder(encoder *bin.Encoder) error
}

type InstrInitializePool struct{}

type InstrDepositStake struct {
	VoteAccount solana.PublicKey
}

type InstrWithdrawStake struct {
	VoteAccount        solana.PublicKey
	UserStakeAuthority solana.PublicKey
	TokenAmount        uint64
}

type InstrCreateTokenMetadata struct {
	VoteAccount solana.PublicKey
}

type InstrUpdateTokenMetadata struct {
	TokenName string
	Symbol    string
	Uri       string
}

func (instr *InstrInitializePool) Name() string      { return "InitializePool" }
func (instr *InstrDepositStake) Name() string        { return "DepositStake" }
func (instr *InstrWithdrawStake) Name() string       { return "WithdrawStake" }
func (instr *InstrCreateTokenMetadata) Name() string { return "CreateTokenMetadata" }
func (instr *InstrUpdateTokenMetadata) Name() string { return "UpdateTokenMetadata" }

func readPubkey(decoder *bin.Decoder) (solana.PublicKey, error) {
	b, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

func readString(decoder *bin.Decoder) (string, error) {
	length, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return "", err
	}
	if int64(length) > int64(decoder.Remaining()) {
		return "", fmt.Errorf("string length %d exceeds remaining %d bytes", length, decoder.Remaining())
	}
	b, err := decoder.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeString(encoder *bin.Encoder, s string) error {
	_ = encoder.WriteUint32(uint32(len(s)), bin.LE)
	return encoder.WriteBytes([]byte(s), false)
}

func (instr *InstrInitializePool) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	return nil
}

func (instr *InstrInitializePool) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteByte(InstrTypeInitializePool)
}

func (instr *InstrDepositStake) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.VoteAccount, err = readPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read VoteAccount when decoding DepositStake: %w", err)
	}
	return nil
}

func (instr *InstrDepositStake) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteByte(InstrTypeDepositStake)
	return encoder.WriteBytes(instr.VoteAccount[:], false)
}

func (instr *InstrWithdrawStake) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.VoteAccount, err = readPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read VoteAccount when decoding WithdrawStake: %w", err)
	}
	instr.UserStakeAuthority, err = readPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read UserStakeAuthority when decoding WithdrawStake: %w", err)
	}
	instr.TokenAmount, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read TokenAmount when decoding WithdrawStake: %w", err)
	}
	return nil
}

func (instr *InstrWithdrawStake) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteByte(InstrTypeWithdrawStake)
	_ = encoder.WriteBytes(instr.VoteAccount[:], false)
	_ = encoder.WriteBytes(instr.UserStakeAuthority[:], false)
	return encoder.WriteUint64(instr.TokenAmount, bin.LE)
}

func (instr *InstrCreateTokenMetadata) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.VoteAccount, err = readPubkey(decoder)
	if err != nil {
		return fmt.Errorf("failed to read VoteAccount when decoding CreateTokenMetadata: %w", err)
	}
	return nil
}

func (instr *InstrCreateTokenMetadata) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteByte(InstrTypeCreateTokenMetadata)
	return encoder.WriteBytes(instr.VoteAccount[:], false)
}

func (instr *InstrUpdateTokenMetadata) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.TokenName, err = readString(decoder)
	if err != nil {
		return fmt.Errorf("failed to read Name when decoding UpdateTokenMetadata: %w", err)
	}
	instr.Symbol, err = readString(decoder)
	if err != nil {
		return fmt.Errorf("failed to read Symbol when decoding UpdateTokenMetadata: %w", err)
	}
	instr.Uri, err = readString(decoder)
	if err != nil {
		return fmt.Errorf("failed to read Uri when decoding UpdateTokenMetadata: %w", err)
	}
	return nil
}

func (instr *InstrUpdateTokenMetadata) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteByte(InstrTypeUpdateTokenMetadata)
	_ = writeString(encoder, instr.TokenName)
	_ = writeString(encoder, instr.Symbol)
	return writeString(encoder, instr.Uri)
}

// UnmarshalInstruction decodes instruction data. Trailing bytes are an error.
func UnmarshalInstruction(data []byte) (Instruction, error) {
	decoder := bin.NewBinDecoder(data)
	instrType, err := decoder.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read instruction type: %w", err)
	}

	var instr interface {
		Instruction
		UnmarshalWithDecoder(decoder *bin.Decoder) error
	}
	switch instrType {
	case InstrTypeInitializePool:
		instr = new(InstrInitializePool)
	case InstrTypeDepositStake:
		instr = new(InstrDepositStake)
	case InstrTypeWithdrawStake:
		instr = new(InstrWithdrawStake)
	case InstrTypeCreateTokenMetadata:
		instr = new(InstrCreateTokenMetadata)
	case InstrTypeUpdateTokenMetadata:
		instr = new(InstrUpdateTokenMetadata)
	default:
		return nil, fmt.Errorf("unknown instruction type %d", instrType)
	}

	err = instr.UnmarshalWithDecoder(decoder)
	if err != nil {
		return nil, err
	}
	if decoder.Remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after %s", decoder.Remaining(), instr.Name())
	}
	return instr, nil
}

func MarshalInstruction(instr Instruction) []byte {
	buf := new(bytes.Buffer)
	_ = instr.MarshalWithEncoder(bin.NewBinEncoder(buf))
	return buf.Bytes()
}

func mustFindPoolAddresses(programID solana.PublicKey, voteAccount solana.PublicKey) *PoolAddresses {
	addrs, err := FindPoolAddresses(programID, voteAccount)
	if err != nil {
		panic(err)
	}
	return addrs
}

// NewInitializePoolInstruction builds InitializePool for the pool of
// voteAccount. The pool stake and mint accounts must already hold their rent.
func NewInitializePoolInstruction(programID solana.PublicKey, voteAccount solana.PublicKey) sealevel.Instruction {
	addrs := mustFindPoolAddresses(programID, voteAccount)
	return sealevel.Instruction{
		Accounts: []sealevel.AccountMeta{
			sealevel.ReadonlyMeta(voteAccount),
			sealevel.WritableMeta(addrs.Stake),
			sealevel.ReadonlyMeta(addrs.Authority),
			sealevel.WritableMeta(addrs.Mint),
			sealevel.ReadonlyMeta(sealevel.SysvarRentAddr),
			sealevel.ReadonlyMeta(sealevel.SysvarClockAddr),
			sealevel.ReadonlyMeta(sealevel.SysvarStakeHistoryAddr),
			sealevel.ReadonlyMeta(sealevel.StakeProgramConfigAddr),
			sealevel.ReadonlyMeta(sealevel.SystemProgramAddr),
			sealevel.ReadonlyMeta(sealevel.TokenProgramAddr),
			sealevel.ReadonlyMeta(sealevel.StakeProgramAddr),
		},
		Data:      MarshalInstruction(&InstrInitializePool{}),
		ProgramId: programID,
	}
}

// NewDepositStakeInstruction builds DepositStake. userStake must already be
// authorized to the pool authority.
func NewDepositStakeInstruction(programID solana.PublicKey, voteAccount solana.PublicKey, userStake solana.PublicKey, userTokenAccount solana.PublicKey, userLamportAccount solana.PublicKey) sealevel.Instruction {
	addrs := mustFindPoolAddresses(programID, voteAccount)
	return sealevel.Instruction{
		Accounts: []sealevel.AccountMeta{
			sealevel.WritableMeta(addrs.Stake),
			sealevel.ReadonlyMeta(addrs.Authority),
			sealevel.WritableMeta(addrs.Mint),
			sealevel.WritableMeta(userStake),
			sealevel.WritableMeta(userTokenAccount),
			sealevel.WritableMeta(userLamportAccount),
			sealevel.ReadonlyMeta(sealevel.SysvarClockAddr),
			sealevel.ReadonlyMeta(sealevel.SysvarStakeHistoryAddr),
			sealevel.ReadonlyMeta(sealevel.TokenProgramAddr),
			sealevel.ReadonlyMeta(sealevel.StakeProgramAddr),
		},
		Data:      MarshalInstruction(&InstrDepositStake{VoteAccount: voteAccount}),
		ProgramId: programID,
	}
}

// NewWithdrawStakeInstruction builds WithdrawStake. The pool authority must
// be approved to burn tokenAmount from userTokenAccount.
func NewWithdrawStakeInstruction(programID solana.PublicKey, voteAccount solana.PublicKey, userStake solana.PublicKey, userStakeAuthority solana.PublicKey, userTokenAccount solana.PublicKey, tokenAmount uint64) sealevel.Instruction {
	addrs := mustFindPoolAddresses(programID, voteAccount)
	instr := InstrWithdrawStake{VoteAccount: voteAccount, UserStakeAuthority: userStakeAuthority, TokenAmount: tokenAmount}
	return sealevel.Instruction{
		Accounts: []sealevel.AccountMeta{
			sealevel.WritableMeta(addrs.Stake),
			sealevel.ReadonlyMeta(addrs.Authority),
			sealevel.WritableMeta(addrs.Mint),
			sealevel.WritableMeta(userStake),
			sealevel.WritableMeta(userTokenAccount),
			sealevel.ReadonlyMeta(sealevel.SysvarClockAddr),
			sealevel.ReadonlyMeta(sealevel.TokenProgramAddr),
			sealevel.ReadonlyMeta(sealevel.StakeProgramAddr),
		},
		Data:      MarshalInstruction(&instr),
		ProgramId: programID,
	}
}

func NewCreateTokenMetadataInstruction(programID solana.PublicKey, voteAccount solana.PublicKey, payer solana.PublicKey) sealevel.Instruction {
	addrs := mustFindPoolAddresses(programID, voteAccount)
	return sealevel.Instruction{
		Accounts: []sealevel.AccountMeta{
			sealevel.ReadonlyMeta(addrs.Authority),
			sealevel.ReadonlyMeta(addrs.Mint),
			sealevel.WritableSignerMeta(payer),
			sealevel.WritableMeta(addrs.Metadata),
			sealevel.ReadonlyMeta(sealevel.TokenMetadataProgramAddr),
			sealevel.ReadonlyMeta(sealevel.SystemProgramAddr),
		},
		Data:      MarshalInstruction(&InstrCreateTokenMetadata{VoteAccount: voteAccount}),
		ProgramId: programID,
	}
}

func NewUpdateTokenMetadataInstruction(programID solana.PublicKey, voteAccount solana.PublicKey, authorizedWithdrawer solana.PublicKey, name string, symbol string, uri string) sealevel.Instruction {
	addrs := mustFindPoolAddresses(programID, voteAccount)
	return sealevel.Instruction{
		Accounts: []sealevel.AccountMeta{
			sealevel.ReadonlyMeta(voteAccount),
			sealevel.ReadonlyMeta(addrs.Authority),
			sealevel.ReadonlySignerMeta(authorizedWithdrawer),
			sealevel.WritableMeta(addrs.Metadata),
			sealevel.ReadonlyMeta(sealevel.TokenMetadataProgramAddr),
		},
		Data:      MarshalInstruction(&InstrUpdateTokenMetadata{TokenName: name, Symbol: symbol, Uri: uri}),
		ProgramId: programID,
	}
}

// Initialize funds the pool stake and mint accounts from payer and
// initializes the pool.
func Initialize(programID solana.PublicKey, voteAccount solana.PublicKey, payer solana.PublicKey, rent *sealevel.SysvarRent, minimumDelegation uint64) []sealevel.Instruction {
	addrs := mustFindPoolAddresses(programID, voteAccount)
	stakeLamports := rent.MinimumBalance(sealevel.StakeStateV2Size) + max(minimumDelegation, sealevel.LamportsPerSol)
	mintLamports := rent.MinimumBalance(sealevel.TokenMintSize)

	return []sealevel.Instruction{
		sealevel.NewTransferInstruction(payer, addrs.Stake, stakeLamports),
		sealevel.NewTransferInstruction(payer, addrs.Mint, mintLamports),
		NewInitializePoolInstruction(programID, voteAccount),
	}
}

// Deposit hands both authorities of userStake to the pool authority and
// deposits it.
func Deposit(programID solana.PublicKey, voteAccount solana.PublicKey, userStake solana.PublicKey, userTokenAccount solana.PublicKey, userLamportAccount solana.PublicKey, userStakeAuthority solana.PublicKey) []sealevel.Instruction {
	addrs := mustFindPoolAddresses(programID, voteAccount)
	return []sealevel.Instruction{
		sealevel.NewStakeAuthorizeInstruction(userStake, userStakeAuthority, addrs.Authority, sealevel.StakeAuthorizeStaker),
		sealevel.NewStakeAuthorizeInstruction(userStake, userStakeAuthority, addrs.Authority, sealevel.StakeAuthorizeWithdrawer),
		NewDepositStakeInstruction(programID, voteAccount, userStake, userTokenAccount, userLamportAccount),
	}
}

// Withdraw approves the pool authority to burn tokenAmount and withdraws the
// matching stake into userStake, which must be a blank stake account.
func Withdraw(programID solana.PublicKey, voteAccount solana.PublicKey, userStake solana.PublicKey, userStakeAuthority solana.PublicKey, userTokenAccount solana.PublicKey, userTokenAuthority solana.PublicKey, tokenAmount uint64) []sealevel.Instruction {
	addrs := mustFindPoolAddresses(programID, voteAccount)
	return []sealevel.Instruction{
		sealevel.NewTokenApproveInstruction(userTokenAccount, addrs.Authority, userTokenAuthority, tokenAmount),
		NewWithdrawStakeInstruction(programID, voteAccount, userStake, userStakeAuthority, userTokenAccount, tokenAmount),
	}
}

// CreateBlankStakeAccount creates a rent exempt, uninitialized stake account
// to receive a withdrawal.
func CreateBlankStakeAccount(payer solana.PublicKey, stakeAccount solana.PublicKey, rent *sealevel.SysvarRent) []sealevel.Instruction {
	lamports := rent.MinimumBalance(sealevel.StakeStateV2Size)
	return []sealevel.Instruction{
		sealevel.NewCreateAccountInstruction(payer, stakeAccount, lamports, sealevel.StakeStateV2Size, sealevel.StakeProgramAddr),
	}
}

// CreateAndDelegateUserStake creates a stake account holding lamports on top
// of its rent, owned and staked by payer, and delegates it to voteAccount.
func CreateAndDelegateUserStake(voteAccount solana.PublicKey, payer solana.PublicKey, stakeAccount solana.PublicKey, rent *sealevel.SysvarRent, lamports uint64) []sealevel.Instruction {
	total := rent.MinimumBalance(sealevel.StakeStateV2Size) + lamports
	authorized := sealevel.Authorized{Staker: payer, Withdrawer: payer}
	return []sealevel.Instruction{
		sealevel.NewCreateAccountInstruction(payer, stakeAccount, total, sealevel.StakeStateV2Size, sealevel.StakeProgramAddr),
		sealevel.NewStakeInitializeInstruction(stakeAccount, authorized, sealevel.StakeLockup{}),
		sealevel.NewStakeDelegateInstruction(stakeAccount, payer, voteAccount),
	}
}

// CreatePoolTokenAccount creates a token account of the pool mint for owner.
func CreatePoolTokenAccount(programID solana.PublicKey, voteAccount solana.PublicKey, payer solana.PublicKey, tokenAccount solana.PublicKey, owner solana.PublicKey, rent *sealevel.SysvarRent) []sealevel.Instruction {
	addrs := mustFindPoolAddresses(programID, voteAccount)
	lamports := rent.MinimumBalance(sealevel.TokenAccountSize)
	return []sealevel.Instruction{
		sealevel.NewCreateAccountInstruction(payer, tokenAccount, lamports, sealevel.TokenAccountSize, sealevel.TokenProgramAddr),
		sealevel.NewTokenInitializeAccountInstruction(tokenAccount, addrs.Mint, owner),
	}
}

func CreateTokenMetadata(programID solana.PublicKey, voteAccount solana.PublicKey, payer solana.PublicKey) []sealevel.Instruction {
	return []sealevel.Instruction{NewCreateTokenMetadataInstruction(programID, voteAccount, payer)}
}

func UpdateTokenMetadata(programID solana.PublicKey, voteAccount solana.PublicKey, authorizedWithdrawer solana.PublicKey, name string, symbol string, uri string) []sealevel.Instruction {
	return []sealevel.Instruction{NewUpdateTokenMetadataInstruction(programID, voteAccount, authorizedWithdrawer, name, symbol, uri)}
}
