package sealevel

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

const SysvarRentAddrStr = "SysvarRent111111111111111111111111111111111"

var SysvarRentAddr = mustAddr(SysvarRentAddrStr)

const SysvarRentStructLen = 17

// AccountStorageOverhead is the per-account size charged on top of its data.
const AccountStorageOverhead = 128

const (
	DefaultLamportsPerByteYear = 1_000_000_000 / 100 * 365 / (1024 * 1024)
	DefaultExemptionThreshold  = 2.0
	DefaultBurnPercent         = 50
)

type SysvarRent struct {
	LamportsPerUint8Year uint64
	ExemptionThreshold   float64
	BurnPercent          byte
}

func DefaultRent() SysvarRent {
	return SysvarRent{
		LamportsPerUint8Year: DefaultLamportsPerByteYear,
		ExemptionThreshold:   DefaultExemptionThreshold,
		BurnPercent:          DefaultBurnPercent,
	}
}

func (sr *SysvarRent) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	lamportsPerUint8Year, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LamportsPerUint8Year when decoding SysvarRent: %w", err)
	}
	sr.LamportsPerUint8Year = lamportsPerUint8Year

	exemptionThreshold, err := decoder.ReadFloat64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read ExemptionThreshold when decoding SysvarRent: %w", err)
	}
	sr.ExemptionThreshold = exemptionThreshold

	burnPercent, err := decoder.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read BurnPercent when decoding SysvarRent: %w", err)
	}
	sr.BurnPercent = burnPercent

	return
}

func (sr *SysvarRent) MarshalWithEncoder(encoder *bin.Encoder) error {
	_ = encoder.WriteUint64(sr.LamportsPerUint8Year, bin.LE)
	_ = encoder.WriteFloat64(sr.ExemptionThreshold, bin.LE)
	return encoder.WriteByte(sr.BurnPercent)
}

func (sr *SysvarRent) Marshal() []byte {
	buf := new(bytes.Buffer)
	_ = sr.MarshalWithEncoder(bin.NewBinEncoder(buf))
	return buf.Bytes()
}

// MinimumBalance is the balance an account of the given data length needs to
// be exempt from rent collection.
func (sr *SysvarRent) MinimumBalance(dataLen uint64) uint64 {
	size := AccountStorageOverhead + dataLen
	return uint64(float64(size*sr.LamportsPerUint8Year) * sr.ExemptionThreshold)
}

func (sr *SysvarRent) IsExempt(lamports uint64, dataLen uint64) bool {
	return lamports >= sr.MinimumBalance(dataLen)
}

// ReadRentSysvar decodes the rent sysvar from an instruction account, after
// checking that the account really is the rent sysvar.
func ReadRentSysvar(acct *BorrowedAccount) (SysvarRent, error) {
	var rent SysvarRent
	if acct.Key() != SysvarRentAddr {
		return rent, InstrErrInvalidArgument
	}
	err := rent.UnmarshalWithDecoder(bin.NewBinDecoder(acct.Data()))
	if err != nil {
		return rent, InstrErrInvalidAccountData
	}
	return rent, nil
}
