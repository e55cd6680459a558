package accounts

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/lotusdblabs/lotusdb/v2"
	"go.firedancer.io/singlepool/pkg/base58"
)

// PersistentAccounts stores serialized accounts in a lotusdb directory so that
// a ledger can be reopened across CLI runs.
type PersistentAccounts struct {
	db *lotusdb.DB
}

func OpenPersistentAccounts(dir string) (*PersistentAccounts, error) {
	options := lotusdb.DefaultOptions
	options.DirPath = dir

	db, err := lotusdb.Open(options)
	if err != nil {
		return nil, err
	}

	return &PersistentAccounts{db: db}, nil
}

func (p *PersistentAccounts) Close() error {
	return p.db.Close()
}

func (p *PersistentAccounts) GetAccount(pubkey *[32]byte) (*Account, error) {
	acctBytes, err := p.db.Get(pubkey[:])
	if errors.Is(err, lotusdb.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error whilst retrieving account %s: %w", base58.Encode(pubkey[:]), err)
	}
	if acctBytes == nil {
		return nil, nil
	}

	decoder := bin.NewBinDecoder(acctBytes)
	acct := new(Account)

	err = acct.UnmarshalWithDecoder(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize account %s: %w", base58.Encode(pubkey[:]), err)
	}

	return acct, nil
}

func (p *PersistentAccounts) SetAccount(pubkey *[32]byte, acct *Account) error {
	writer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(writer)

	err := acct.MarshalWithEncoder(encoder)
	if err != nil {
		return fmt.Errorf("failed to serialize account %s: %w", base58.Encode(pubkey[:]), err)
	}

	err = p.db.Put(pubkey[:], writer.Bytes())
	if err != nil {
		return fmt.Errorf("error setting account for %s: %w", base58.Encode(pubkey[:]), err)
	}

	return nil
}
