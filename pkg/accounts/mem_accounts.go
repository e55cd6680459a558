package accounts

type MemAccounts struct {
	Map map[[32]byte]*Account
}

func NewMemAccounts() MemAccounts {
	return MemAccounts{
		Map: make(map[[32]byte]*Account),
	}
}

func (m MemAccounts) GetAccount(pubkey *[32]byte) (*Account, error) {
	return m.Map[*pubkey], nil
}

func (m MemAccounts) SetAccount(pubkey *[32]byte, acc *Account) error {
	m.Map[*pubkey] = acc
	return nil
}

// Keys returns the addresses of all stored accounts, in no particular order.
func (m MemAccounts) Keys() [][32]byte {
	keys := make([][32]byte, 0, len(m.Map))
	for k := range m.Map {
		keys = append(keys, k)
	}
	return keys
}
