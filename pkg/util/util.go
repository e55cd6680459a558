package util

import (
	"bytes"
	"encoding/binary"
	"runtime"
	"slices"

	"github.com/gagliardetto/solana-go"
	"github.com/zeebo/blake3"
	"go.firedancer.io/singlepool/pkg/accounts"
	"k8s.io/klog/v2"
)

// PubkeyCmp orders keys bytewise, the order the bank lists accounts in.
func PubkeyCmp(a solana.PublicKey, b solana.PublicKey) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// DedupePubkeys sorts pubkeys in place and drops repeats.
func DedupePubkeys(pubkeys []solana.PublicKey) []solana.PublicKey {
	slices.SortFunc(pubkeys, func(a, b solana.PublicKey) int {
		return bytes.Compare(a[:], b[:])
	})
	return slices.Compact(pubkeys)
}

// CalculateAcctHash fingerprints every field of an account, so that two
// ledgers can be compared account by account.
func CalculateAcctHash(acct accounts.Account) []byte {
	hasher := blake3.New()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], acct.Lamports)
	_, _ = hasher.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], acct.RentEpoch)
	_, _ = hasher.Write(buf[:])

	_, _ = hasher.Write(acct.Data)
	if acct.Executable {
		_, _ = hasher.Write([]byte{1})
	} else {
		_, _ = hasher.Write([]byte{0})
	}
	_, _ = hasher.Write(acct.Owner[:])
	_, _ = hasher.Write(acct.Key[:])

	return hasher.Sum(nil)
}

// VerboseHandleError logs err along with the calling function and reports
// whether there was one.
func VerboseHandleError(err error) bool {
	if err == nil {
		return false
	}
	pc, filename, line, _ := runtime.Caller(1)
	klog.Errorf("in %s[%s:%d]: %v", runtime.FuncForPC(pc).Name(), filename, line, err)
	return true
}
