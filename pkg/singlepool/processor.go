package singlepool

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/base58"
	"go.firedancer.io/singlepool/pkg/safemath"
	"go.firedancer.io/singlepool/pkg/sealevel"
	"k8s.io/klog/v2"
)

const CUSinglePoolDefaultComputeUnits = 1000

// Process is the entrypoint of the single pool program.
func Process(execCtx *sealevel.ExecutionCtx) error {
	err := execCtx.ComputeMeter.Consume(CUSinglePoolDefaultComputeUnits)
	if err != nil {
		return sealevel.InstrErrComputationalBudgetExceeded
	}

	instrCtx, err := execCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	instr, err := UnmarshalInstruction(instrCtx.Data)
	if err != nil {
		klog.V(2).Infof("invalid single pool instruction data: %s", err)
		return sealevel.InstrErrInvalidInstructionData
	}

	programID := instrCtx.ProgramId()
	execCtx.Logf("Instruction: %s", instr.Name())

	switch instr := instr.(type) {
	case *InstrInitializePool:
		err = processInitializePool(execCtx, instrCtx, programID)
	case *InstrDepositStake:
		err = processDepositStake(execCtx, instrCtx, programID, instr.VoteAccount)
	case *InstrWithdrawStake:
		err = processWithdrawStake(execCtx, instrCtx, programID, instr.VoteAccount, instr.UserStakeAuthority, instr.TokenAmount)
	case *InstrCreateTokenMetadata:
		err = processCreateTokenMetadata(execCtx, instrCtx, programID, instr.VoteAccount)
	case *InstrUpdateTokenMetadata:
		err = processUpdateTokenMetadata(execCtx, instrCtx, programID, instr.TokenName, instr.Symbol, instr.Uri)
	default:
		err = sealevel.InstrErrInvalidInstructionData
	}

	recordInstruction(execCtx, instr.Name(), err)
	return err
}

// instructionKeys resolves the keys of the first n instruction accounts.
func instructionKeys(instrCtx *sealevel.InstructionCtx, n uint64) ([]solana.PublicKey, error) {
	err := instrCtx.CheckNumOfInstructionAccounts(n)
	if err != nil {
		return nil, err
	}
	keys := make([]solana.PublicKey, n)
	for i := uint64(0); i < n; i++ {
		keys[i], err = instrCtx.KeyOfAccountAtIndex(i)
		if err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func processInitializePool(execCtx *sealevel.ExecutionCtx, instrCtx *sealevel.InstructionCtx, programID solana.PublicKey) error {
	const (
		voteIdx = iota
		poolStakeIdx
		poolAuthorityIdx
		poolMintIdx
		rentIdx
		clockIdx
		stakeHistoryIdx
		stakeConfigIdx
		systemProgramIdx
		tokenProgramIdx
		stakeProgramIdx
		numAccounts
	)

	keys, err := instructionKeys(instrCtx, numAccounts)
	if err != nil {
		return err
	}
	voteAccount := keys[voteIdx]

	voteAcct, err := instrCtx.BorrowInstructionAccount(voteIdx)
	if err != nil {
		return err
	}
	err = checkVoteAccount(execCtx, voteAcct)
	if err != nil {
		return err
	}

	stakeBump, err := checkPoolStakeAddress(execCtx, programID, voteAccount, keys[poolStakeIdx])
	if err != nil {
		return err
	}
	authorityBump, err := checkPoolAuthorityAddress(execCtx, programID, voteAccount, keys[poolAuthorityIdx])
	if err != nil {
		return err
	}
	mintBump, err := checkPoolMintAddress(execCtx, programID, voteAccount, keys[poolMintIdx])
	if err != nil {
		return err
	}
	err = checkSystemProgram(execCtx, keys[systemProgramIdx])
	if err != nil {
		return err
	}
	err = checkTokenProgram(execCtx, keys[tokenProgramIdx])
	if err != nil {
		return err
	}
	err = checkStakeProgram(execCtx, keys[stakeProgramIdx])
	if err != nil {
		return err
	}

	authority := newPoolSigner(PoolAuthorityPrefix, voteAccount, keys[poolAuthorityIdx], authorityBump)
	stakeSigner := newPoolSigner(PoolStakePrefix, voteAccount, keys[poolStakeIdx], stakeBump)
	mintSigner := newPoolSigner(PoolMintPrefix, voteAccount, keys[poolMintIdx], mintBump)

	rentAcct, err := instrCtx.BorrowInstructionAccount(rentIdx)
	if err != nil {
		return err
	}
	rent, err := sealevel.ReadRentSysvar(rentAcct)
	if err != nil {
		return err
	}

	// the mint is paid for by the caller ahead of time
	err = allocateAndAssign(execCtx, mintSigner, sealevel.TokenMintSize, sealevel.TokenProgramAddr)
	if err != nil {
		return err
	}
	err = tokenInitializeMint(execCtx, mintSigner.address, authority)
	if err != nil {
		return err
	}

	minDelegation, err := minimumDelegation(execCtx)
	if err != nil {
		return err
	}

	poolStakeAcct, err := instrCtx.BorrowInstructionAccount(poolStakeIdx)
	if err != nil {
		return err
	}
	stakeRentPlusInitial := safemath.SaturatingAddU64(rent.MinimumBalance(sealevel.StakeStateV2Size), minDelegation)
	if poolStakeAcct.Lamports() < stakeRentPlusInitial {
		execCtx.Logf("Pool stake account needs %d lamports, has %d", stakeRentPlusInitial, poolStakeAcct.Lamports())
		return SinglePoolErrWrongRentAmount
	}

	err = allocateAndAssign(execCtx, stakeSigner, sealevel.StakeStateV2Size, sealevel.StakeProgramAddr)
	if err != nil {
		return err
	}
	err = stakeInitialize(execCtx, stakeSigner.address, authority)
	if err != nil {
		return err
	}

	return stakeDelegate(execCtx, stakeSigner.address, voteAccount, authority)
}

func processDepositStake(execCtx *sealevel.ExecutionCtx, instrCtx *sealevel.InstructionCtx, programID solana.PublicKey, voteAccount solana.PublicKey) error {
	const (
		poolStakeIdx = iota
		poolAuthorityIdx
		poolMintIdx
		userStakeIdx
		userTokenIdx
		userLamportsIdx
		clockIdx
		stakeHistoryIdx
		tokenProgramIdx
		stakeProgramIdx
		numAccounts
	)

	keys, err := instructionKeys(instrCtx, numAccounts)
	if err != nil {
		return err
	}

	clockAcct, err := instrCtx.BorrowInstructionAccount(clockIdx)
	if err != nil {
		return err
	}
	clock, err := sealevel.ReadClockSysvar(clockAcct)
	if err != nil {
		return err
	}

	_, err = checkPoolStakeAddress(execCtx, programID, voteAccount, keys[poolStakeIdx])
	if err != nil {
		return err
	}
	authorityBump, err := checkPoolAuthorityAddress(execCtx, programID, voteAccount, keys[poolAuthorityIdx])
	if err != nil {
		return err
	}
	_, err = checkPoolMintAddress(execCtx, programID, voteAccount, keys[poolMintIdx])
	if err != nil {
		return err
	}
	err = checkTokenProgram(execCtx, keys[tokenProgramIdx])
	if err != nil {
		return err
	}
	err = checkStakeProgram(execCtx, keys[stakeProgramIdx])
	if err != nil {
		return err
	}

	if keys[poolStakeIdx] == keys[userStakeIdx] {
		return SinglePoolErrInvalidPoolAccountUsage
	}

	authority := newPoolSigner(PoolAuthorityPrefix, voteAccount, keys[poolAuthorityIdx], authorityBump)

	minDelegation, err := minimumDelegation(execCtx)
	if err != nil {
		return err
	}

	poolStakeAcct, err := instrCtx.BorrowInstructionAccount(poolStakeIdx)
	if err != nil {
		return err
	}
	_, poolStake, err := getStakeState(poolStakeAcct)
	if err != nil {
		return err
	}
	prePoolStake := safemath.SaturatingSubU64(poolStake.Delegation.Stake, minDelegation)
	execCtx.Logf("Available stake pre merge %d", prePoolStake)

	// active stake only goes into an active pool, activating stake into an activating one
	userStakeAcct, err := instrCtx.BorrowInstructionAccount(userStakeIdx)
	if err != nil {
		return err
	}
	_, userStake, err := getStakeState(userStakeAcct)
	if err != nil {
		return err
	}
	if isStakeActiveWithoutHistory(poolStake, clock.Epoch) != isStakeActiveWithoutHistory(userStake, clock.Epoch) {
		return SinglePoolErrWrongStakeState
	}

	// the merge only succeeds if the user stake was authorized to the pool
	err = stakeMerge(execCtx, keys[poolStakeIdx], keys[userStakeIdx], authority)
	if err != nil {
		return err
	}

	poolStakeMeta, poolStake, err := getStakeState(poolStakeAcct)
	if err != nil {
		return err
	}
	postPoolStake := safemath.SaturatingSubU64(poolStake.Delegation.Stake, minDelegation)
	postPoolLamports := poolStakeAcct.Lamports()
	execCtx.Logf("Available stake post merge %d", postPoolStake)

	stakeAdded, err := safemath.CheckedSubU64(postPoolStake, prePoolStake)
	if err != nil {
		return SinglePoolErrArithmeticOverflow
	}

	// measured against the whole account so that stray lamports can be claimed
	excessLamports, err := safemath.CheckedSubU64(postPoolLamports, poolStake.Delegation.Stake)
	if err == nil {
		excessLamports, err = safemath.CheckedSubU64(excessLamports, poolStakeMeta.RentExemptReserve)
	}
	if err != nil {
		return SinglePoolErrArithmeticOverflow
	}

	if postPoolStake < minDelegation {
		return SinglePoolErrUnexpectedMathError
	}
	if userStakeAcct.Lamports() != 0 {
		return SinglePoolErrUnexpectedMathError
	}

	poolMintAcct, err := instrCtx.BorrowInstructionAccount(poolMintIdx)
	if err != nil {
		return err
	}
	tokenSupply, err := getMintSupply(poolMintAcct)
	if err != nil {
		return err
	}

	newPoolTokens, ok := calculateDepositAmount(tokenSupply, prePoolStake, stakeAdded)
	if !ok {
		return SinglePoolErrUnexpectedMathError
	}
	if newPoolTokens == 0 {
		return SinglePoolErrDepositTooSmall
	}

	err = tokenMintTo(execCtx, keys[poolMintIdx], keys[userTokenIdx], newPoolTokens, authority)
	if err != nil {
		return err
	}

	if excessLamports > 0 {
		err = stakeWithdraw(execCtx, keys[poolStakeIdx], keys[userLamportsIdx], excessLamports, authority)
		if err != nil {
			return err
		}
	}

	execCtx.OnCommit(func() {
		tokensMinted.Add(float64(newPoolTokens))
		stakeDeposited.Add(float64(stakeAdded))
	})
	return nil
}

func processWithdrawStake(execCtx *sealevel.ExecutionCtx, instrCtx *sealevel.InstructionCtx, programID solana.PublicKey, voteAccount solana.PublicKey, userStakeAuthority solana.PublicKey, tokenAmount uint64) error {
	const (
		poolStakeIdx = iota
		poolAuthorityIdx
		poolMintIdx
		userStakeIdx
		userTokenIdx
		clockIdx
		tokenProgramIdx
		stakeProgramIdx
		numAccounts
	)

	keys, err := instructionKeys(instrCtx, numAccounts)
	if err != nil {
		return err
	}

	_, err = checkPoolStakeAddress(execCtx, programID, voteAccount, keys[poolStakeIdx])
	if err != nil {
		return err
	}
	authorityBump, err := checkPoolAuthorityAddress(execCtx, programID, voteAccount, keys[poolAuthorityIdx])
	if err != nil {
		return err
	}
	_, err = checkPoolMintAddress(execCtx, programID, voteAccount, keys[poolMintIdx])
	if err != nil {
		return err
	}
	err = checkTokenProgram(execCtx, keys[tokenProgramIdx])
	if err != nil {
		return err
	}
	err = checkStakeProgram(execCtx, keys[stakeProgramIdx])
	if err != nil {
		return err
	}

	if keys[poolStakeIdx] == keys[userStakeIdx] {
		return SinglePoolErrInvalidPoolAccountUsage
	}

	authority := newPoolSigner(PoolAuthorityPrefix, voteAccount, keys[poolAuthorityIdx], authorityBump)

	minDelegation, err := minimumDelegation(execCtx)
	if err != nil {
		return err
	}

	poolStakeAcct, err := instrCtx.BorrowInstructionAccount(poolStakeIdx)
	if err != nil {
		return err
	}
	stakeAmount, err := getStakeAmount(poolStakeAcct)
	if err != nil {
		return err
	}
	prePoolStake := safemath.SaturatingSubU64(stakeAmount, minDelegation)
	execCtx.Logf("Available stake pre split %d", prePoolStake)

	poolMintAcct, err := instrCtx.BorrowInstructionAccount(poolMintIdx)
	if err != nil {
		return err
	}
	tokenSupply, err := getMintSupply(poolMintAcct)
	if err != nil {
		return err
	}

	withdrawStake, ok := calculateWithdrawAmount(tokenSupply, prePoolStake, tokenAmount)
	if !ok {
		return SinglePoolErrUnexpectedMathError
	}
	if withdrawStake == 0 {
		return SinglePoolErrWithdrawalTooSmall
	}

	// a single withdrawal never empties the pool stake account
	if withdrawStake > prePoolStake || withdrawStake == poolStakeAcct.Lamports() {
		return SinglePoolErrWithdrawalTooLarge
	}

	err = tokenBurn(execCtx, keys[userTokenIdx], keys[poolMintIdx], tokenAmount, authority)
	if err != nil {
		return err
	}

	err = stakeSplit(execCtx, keys[poolStakeIdx], withdrawStake, keys[userStakeIdx], authority)
	if err != nil {
		return err
	}

	err = stakeAuthorize(execCtx, keys[userStakeIdx], userStakeAuthority, authority)
	if err != nil {
		return err
	}

	stakeAmount, err = getStakeAmount(poolStakeAcct)
	if err != nil {
		return err
	}
	execCtx.Logf("Available stake post split %d", safemath.SaturatingSubU64(stakeAmount, minDelegation))

	execCtx.OnCommit(func() {
		tokensBurned.Add(float64(tokenAmount))
		stakeWithdrawn.Add(float64(withdrawStake))
	})
	return nil
}

// defaultTokenMetadata names the pool token after its vote account.
func defaultTokenMetadata(voteAccount solana.PublicKey) sealevel.DataV2 {
	voteAddress := base58.Encode(voteAccount[:])
	return sealevel.DataV2{
		Name:   "SPL Single Pool " + voteAddress[:15],
		Symbol: "st" + voteAddress[:7],
	}
}

func processCreateTokenMetadata(execCtx *sealevel.ExecutionCtx, instrCtx *sealevel.InstructionCtx, programID solana.PublicKey, voteAccount solana.PublicKey) error {
	const (
		poolAuthorityIdx = iota
		poolMintIdx
		payerIdx
		metadataIdx
		metadataProgramIdx
		systemProgramIdx
		numAccounts
	)

	keys, err := instructionKeys(instrCtx, numAccounts)
	if err != nil {
		return err
	}

	authorityBump, err := checkPoolAuthorityAddress(execCtx, programID, voteAccount, keys[poolAuthorityIdx])
	if err != nil {
		return err
	}
	_, err = checkPoolMintAddress(execCtx, programID, voteAccount, keys[poolMintIdx])
	if err != nil {
		return err
	}
	err = checkSystemProgram(execCtx, keys[systemProgramIdx])
	if err != nil {
		return err
	}

	payerAcct, err := instrCtx.BorrowInstructionAccount(payerIdx)
	if err != nil {
		return err
	}
	err = checkAccountOwner(execCtx, payerAcct, sealevel.SystemProgramAddr)
	if err != nil {
		return err
	}

	err = checkMetadataProgram(execCtx, keys[metadataProgramIdx])
	if err != nil {
		return err
	}
	err = checkMetadataAccountAddress(keys[metadataIdx], keys[poolMintIdx])
	if err != nil {
		return err
	}

	if !payerAcct.IsSigner() {
		execCtx.Logf("Payer did not sign metadata creation")
		return SinglePoolErrSignatureMissing
	}

	// an initialized mint means the pool exists
	poolMintAcct, err := instrCtx.BorrowInstructionAccount(poolMintIdx)
	if err != nil {
		return err
	}
	_, err = getMintSupply(poolMintAcct)
	if err != nil {
		return err
	}

	authority := newPoolSigner(PoolAuthorityPrefix, voteAccount, keys[poolAuthorityIdx], authorityBump)
	ix := sealevel.NewCreateMetadataAccountV3Instruction(
		keys[metadataIdx],
		keys[poolMintIdx],
		authority.address,
		keys[payerIdx],
		authority.address,
		defaultTokenMetadata(voteAccount),
		true,
	)
	return authority.invoke(execCtx, ix)
}

func processUpdateTokenMetadata(execCtx *sealevel.ExecutionCtx, instrCtx *sealevel.InstructionCtx, programID solana.PublicKey, name string, symbol string, uri string) error {
	const (
		voteIdx = iota
		poolAuthorityIdx
		authorizedWithdrawerIdx
		metadataIdx
		metadataProgramIdx
		numAccounts
	)

	keys, err := instructionKeys(instrCtx, numAccounts)
	if err != nil {
		return err
	}
	voteAccount := keys[voteIdx]

	voteAcct, err := instrCtx.BorrowInstructionAccount(voteIdx)
	if err != nil {
		return err
	}
	err = checkVoteAccount(execCtx, voteAcct)
	if err != nil {
		return err
	}
	authorityBump, err := checkPoolAuthorityAddress(execCtx, programID, voteAccount, keys[poolAuthorityIdx])
	if err != nil {
		return err
	}
	poolMint, _, err := FindPoolMintAddress(programID, voteAccount)
	if err != nil {
		return err
	}
	err = checkMetadataProgram(execCtx, keys[metadataProgramIdx])
	if err != nil {
		return err
	}
	err = checkMetadataAccountAddress(keys[metadataIdx], poolMint)
	if err != nil {
		return err
	}

	// the vote account's withdrawer is the key the operator keeps cold
	withdrawer, err := voteAccountWithdrawer(voteAcct)
	if err != nil {
		return err
	}
	if keys[authorizedWithdrawerIdx] != withdrawer {
		execCtx.Logf("Vote account authorized withdrawer does not match the account provided.")
		return SinglePoolErrInvalidMetadataSigner
	}

	isSigner, err := instrCtx.IsInstructionAccountSigner(authorizedWithdrawerIdx)
	if err != nil {
		return err
	}
	if !isSigner {
		execCtx.Logf("Vote account authorized withdrawer did not sign metadata update.")
		return SinglePoolErrSignatureMissing
	}

	authority := newPoolSigner(PoolAuthorityPrefix, voteAccount, keys[poolAuthorityIdx], authorityBump)
	isMutable := true
	ix := sealevel.NewUpdateMetadataAccountV2Instruction(
		keys[metadataIdx],
		authority.address,
		nil,
		&sealevel.DataV2{Name: name, Symbol: symbol, Uri: uri},
		nil,
		&isMutable,
	)
	return authority.invoke(execCtx, ix)
}
