package solana

import (
	"errors"

	"filippo.io/edwards25519"
	"github.com/minio/sha256-simd"
)

const MaxSeeds = 16
const MaxSeedLen = 32
const PublicKeyLength = 32
const PdaMarker = "ProgramDerivedAddress"

var (
	ErrSeedLength          = errors.New("Max seeds (16) exceeded")
	ErrAddressLength       = errors.New("Wrong key length; addresses are 32 bytes long")
	ErrOnCurveInvalidSeeds = errors.New("Invalid seeds - generated address must be off-curve")
	ErrNoViableBump        = errors.New("Unable to find a viable program address bump seed")
)

func CreateProgramAddressBytes(seeds [][]byte, programID []byte) ([]byte, error) {
	if len(seeds) > MaxSeeds {
		return nil, ErrSeedLength
	}

	if len(programID) != PublicKeyLength {
		return nil, ErrAddressLength
	}

	hasher := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return nil, ErrSeedLength
		}
		hasher.Write(seed)
	}

	hasher.Write(programID)
	hasher.Write([]byte(PdaMarker))
	hash := hasher.Sum(nil)

	if IsOnCurve(hash[:]) {
		return nil, ErrOnCurveInvalidSeeds
	}

	return hash[:], nil
}

// FindProgramAddressBytes searches bump seeds from 255 downward and returns
// the first off-curve address along with the bump that produced it.
func FindProgramAddressBytes(seeds [][]byte, programID []byte) ([]byte, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return nil, 0, ErrSeedLength
	}

	bumpSeed := []byte{255}
	withBump := append(append([][]byte{}, seeds...), bumpSeed)
	for {
		addr, err := CreateProgramAddressBytes(withBump, programID)
		if err == nil {
			return addr, bumpSeed[0], nil
		}
		if err != ErrOnCurveInvalidSeeds {
			return nil, 0, err
		}
		if bumpSeed[0] == 0 {
			return nil, 0, ErrNoViableBump
		}
		bumpSeed[0]--
	}
}

// IsOnCurve checks if 'b' is on the ed25519 curve
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	onCurve := err == nil
	return onCurve
}
