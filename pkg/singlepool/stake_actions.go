package singlepool

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/singlepool/pkg/sealevel"
)

// minimumDelegation asks the stake program for its minimum delegation, never
// going below one SOL.
func minimumDelegation(execCtx *sealevel.ExecutionCtx) (uint64, error) {
	err := execCtx.NativeInvoke(sealevel.NewStakeGetMinimumDelegationInstruction(), nil)
	if err != nil {
		return 0, err
	}

	programID, data := execCtx.TransactionContext.GetReturnData()
	if programID != sealevel.StakeProgramAddr || len(data) != 8 {
		return 0, sealevel.InstrErrInvalidInstructionData
	}

	minDelegation := binary.LittleEndian.Uint64(data)
	return max(minDelegation, sealevel.LamportsPerSol), nil
}

func stakeInitialize(execCtx *sealevel.ExecutionCtx, stake solana.PublicKey, authority poolSigner) error {
	authorized := sealevel.Authorized{Staker: authority.address, Withdrawer: authority.address}
	return authority.invoke(execCtx, sealevel.NewStakeInitializeCheckedInstruction(stake, authorized))
}

func stakeDelegate(execCtx *sealevel.ExecutionCtx, stake solana.PublicKey, voteAccount solana.PublicKey, authority poolSigner) error {
	return authority.invoke(execCtx, sealevel.NewStakeDelegateInstruction(stake, authority.address, voteAccount))
}

func stakeMerge(execCtx *sealevel.ExecutionCtx, destination solana.PublicKey, source solana.PublicKey, authority poolSigner) error {
	return authority.invoke(execCtx, sealevel.NewStakeMergeInstruction(destination, source, authority.address))
}

func stakeSplit(execCtx *sealevel.ExecutionCtx, stake solana.PublicKey, lamports uint64, splitStake solana.PublicKey, authority poolSigner) error {
	return authority.invoke(execCtx, sealevel.NewStakeSplitInstruction(stake, authority.address, lamports, splitStake))
}

// stakeAuthorize hands both the staker and withdrawer roles of stake over to
// newAuthority.
func stakeAuthorize(execCtx *sealevel.ExecutionCtx, stake solana.PublicKey, newAuthority solana.PublicKey, authority poolSigner) error {
	err := authority.invoke(execCtx, sealevel.NewStakeAuthorizeInstruction(stake, authority.address, newAuthority, sealevel.StakeAuthorizeStaker))
	if err != nil {
		return err
	}
	return authority.invoke(execCtx, sealevel.NewStakeAuthorizeInstruction(stake, authority.address, newAuthority, sealevel.StakeAuthorizeWithdrawer))
}

func stakeWithdraw(execCtx *sealevel.ExecutionCtx, stake solana.PublicKey, to solana.PublicKey, lamports uint64, authority poolSigner) error {
	return authority.invoke(execCtx, sealevel.NewStakeWithdrawInstruction(stake, authority.address, to, lamports))
}
