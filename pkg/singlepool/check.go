package singlepool

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/sealevel"
)

// VoteStateVersionOffset is the end of the little-endian u32 version at the
// start of a vote account.
const VoteStateVersionOffset = 4

// the authorized withdrawer follows the version and the node pubkey
const (
	VoteStateAuthorizedWithdrawerStart = 36
	VoteStateAuthorizedWithdrawerEnd   = 68
)

func checkPoolStakeAddress(execCtx *sealevel.ExecutionCtx, programID, voteAccount, address solana.PublicKey) (uint8, error) {
	expected, bump, err := FindPoolStakeAddress(programID, voteAccount)
	if err != nil {
		return 0, err
	}
	if address != expected {
		execCtx.Logf("Incorrect pool stake address for vote %s, expected %s, received %s", voteAccount, expected, address)
		return 0, SinglePoolErrInvalidPoolStakeAccount
	}
	return bump, nil
}

func checkPoolAuthorityAddress(execCtx *sealevel.ExecutionCtx, programID, voteAccount, address solana.PublicKey) (uint8, error) {
	expected, bump, err := FindPoolAuthorityAddress(programID, voteAccount)
	if err != nil {
		return 0, err
	}
	if address != expected {
		execCtx.Logf("Incorrect pool authority address for vote %s, expected %s, received %s", voteAccount, expected, address)
		return 0, SinglePoolErrInvalidPoolAuthority
	}
	return bump, nil
}

func checkPoolMintAddress(execCtx *sealevel.ExecutionCtx, programID, voteAccount, address solana.PublicKey) (uint8, error) {
	expected, bump, err := FindPoolMintAddress(programID, voteAccount)
	if err != nil {
		return 0, err
	}
	if address != expected {
		execCtx.Logf("Incorrect pool mint address for vote %s, expected %s, received %s", voteAccount, expected, address)
		return 0, SinglePoolErrInvalidPoolMint
	}
	return bump, nil
}

// checkVoteAccount accepts vote accounts owned by the vote program in the
// current layout only.
func checkVoteAccount(execCtx *sealevel.ExecutionCtx, voteAcct *sealevel.BorrowedAccount) error {
	err := checkAccountOwner(execCtx, voteAcct, sealevel.VoteProgramAddr)
	if err != nil {
		return err
	}

	data := voteAcct.Data()
	if len(data) < VoteStateVersionOffset {
		return SinglePoolErrUnparseableVoteAccount
	}

	switch binary.LittleEndian.Uint32(data[:VoteStateVersionOffset]) {
	case sealevel.VoteStateVersionV1_14_11:
		return nil
	case sealevel.VoteStateVersionV0_23_5:
		return SinglePoolErrLegacyVoteAccount
	}
	return SinglePoolErrUnparseableVoteAccount
}

// voteAccountWithdrawer reads the authorized withdrawer straight out of the
// vote account data.
func voteAccountWithdrawer(voteAcct *sealevel.BorrowedAccount) (solana.PublicKey, error) {
	data := voteAcct.Data()
	if len(data) < VoteStateAuthorizedWithdrawerEnd {
		return solana.PublicKey{}, SinglePoolErrUnparseableVoteAccount
	}
	return solana.PublicKeyFromBytes(data[VoteStateAuthorizedWithdrawerStart:VoteStateAuthorizedWithdrawerEnd]), nil
}

func checkMetadataAccountAddress(metadataAddress, poolMint solana.PublicKey) error {
	expected, err := FindPoolMetadataAddress(poolMint)
	if err != nil {
		return err
	}
	if metadataAddress != expected {
		return SinglePoolErrInvalidMetadataAccount
	}
	return nil
}

func checkProgram(execCtx *sealevel.ExecutionCtx, name string, expected, programID solana.PublicKey) error {
	if programID != expected {
		execCtx.Logf("Expected %s program %s, received %s", name, expected, programID)
		return sealevel.InstrErrIncorrectProgramId
	}
	return nil
}

func checkSystemProgram(execCtx *sealevel.ExecutionCtx, programID solana.PublicKey) error {
	return checkProgram(execCtx, "system", sealevel.SystemProgramAddr, programID)
}

func checkTokenProgram(execCtx *sealevel.ExecutionCtx, programID solana.PublicKey) error {
	return checkProgram(execCtx, "token", sealevel.TokenProgramAddr, programID)
}

func checkStakeProgram(execCtx *sealevel.ExecutionCtx, programID solana.PublicKey) error {
	return checkProgram(execCtx, "stake", sealevel.StakeProgramAddr, programID)
}

func checkMetadataProgram(execCtx *sealevel.ExecutionCtx, programID solana.PublicKey) error {
	return checkProgram(execCtx, "mpl metadata", sealevel.TokenMetadataProgramAddr, programID)
}

func checkAccountOwner(execCtx *sealevel.ExecutionCtx, acct *sealevel.BorrowedAccount, owner solana.PublicKey) error {
	if acct.Owner() != owner {
		execCtx.Logf("Expected account to be owned by program %s, received %s", owner, acct.Owner())
		return sealevel.InstrErrIncorrectProgramId
	}
	return nil
}

// getStakeState returns the meta and stake of a delegated stake account.
func getStakeState(stakeAcct *sealevel.BorrowedAccount) (*sealevel.Meta, *sealevel.Stake, error) {
	state, err := sealevel.UnmarshalStakeState(stakeAcct.Data())
	if err != nil {
		return nil, nil, sealevel.InstrErrInvalidAccountData
	}
	if state.Status != sealevel.StakeStateV2StatusStake {
		return nil, nil, SinglePoolErrWrongStakeState
	}
	return &state.Stake.Meta, &state.Stake.Stake, nil
}

func getStakeAmount(stakeAcct *sealevel.BorrowedAccount) (uint64, error) {
	_, stake, err := getStakeState(stakeAcct)
	if err != nil {
		return 0, err
	}
	return stake.Delegation.Stake, nil
}

// isStakeActiveWithoutHistory treats stake as active from the epoch after it
// was delegated until it is deactivated.
func isStakeActiveWithoutHistory(stake *sealevel.Stake, currentEpoch uint64) bool {
	return stake.Delegation.ActivationEpoch < currentEpoch && !stake.Delegation.IsDeactivating()
}

func getMintSupply(mintAcct *sealevel.BorrowedAccount) (uint64, error) {
	mint, err := sealevel.UnmarshalTokenMint(mintAcct.Data())
	if err != nil {
		return 0, sealevel.InstrErrInvalidAccountData
	}
	if !mint.IsInitialized {
		return 0, sealevel.TokenErrUninitializedState
	}
	return mint.Supply, nil
}
