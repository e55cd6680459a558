package sealevel

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestMetadata(t *testing.T, env *tokenTestEnv, updateAuthority solana.PublicKey, data DataV2, isMutable bool) solana.PublicKey {
	metadata, _, err := FindMetadataAddress(env.mint)
	require.NoError(t, err)

	ix := NewCreateMetadataAccountV3Instruction(metadata, env.mint, env.authority, env.payer, updateAuthority, data, isMutable)
	_, err = env.bank.ProcessInstruction(ix, env.authority, env.payer)
	require.NoError(t, err)
	return metadata
}

func getTestMetadata(t *testing.T, bank *Bank, key solana.PublicKey) *TokenMetadata {
	acct, err := bank.GetAccount(key)
	require.NoError(t, err)
	require.NotNil(t, acct)
	md, err := UnmarshalTokenMetadata(acct.Data)
	require.NoError(t, err)
	return md
}

func TestExecute_Tx_Token_Metadata_Program_CreateV3_Success(t *testing.T) {
	env := newTokenTestEnv(t)
	updateAuthority := solana.NewWallet().PublicKey()
	payerBefore := getLamports(t, env.bank, env.payer)

	data := DataV2{Name: "Token", Symbol: "TOK", Uri: "https://example.com/token.json"}
	metadata := createTestMetadata(t, env, updateAuthority, data, true)

	rent := env.bank.Rent()
	acct, err := env.bank.GetAccount(metadata)
	require.NoError(t, err)
	assert.Equal(t, TokenMetadataProgramAddr, acct.Owner)
	assert.Len(t, acct.Data, MetadataMaxLen)
	assert.Equal(t, rent.MinimumBalance(MetadataMaxLen), acct.Lamports)
	assert.Equal(t, payerBefore-acct.Lamports, getLamports(t, env.bank, env.payer))

	md := getTestMetadata(t, env.bank, metadata)
	assert.Equal(t, byte(MetadataKeyMetadataV1), md.Key)
	assert.Equal(t, updateAuthority, md.UpdateAuthority)
	assert.Equal(t, env.mint, md.Mint)
	assert.Equal(t, data, md.Data)
	assert.True(t, md.IsMutable)
	require.NotNil(t, md.TokenStandard)
	assert.Equal(t, byte(MetadataTokenStandardFungible), *md.TokenStandard)
}

func TestExecute_Tx_Token_Metadata_Program_CreateV3_PrefundedAccount(t *testing.T) {
	env := newTokenTestEnv(t)
	metadata, _, err := FindMetadataAddress(env.mint)
	require.NoError(t, err)

	// someone has already sent lamports to the metadata address
	require.NoError(t, env.bank.Airdrop(metadata, 1000))

	createTestMetadata(t, env, env.authority, DataV2{Name: "Token"}, true)
	rent := env.bank.Rent()
	assert.Equal(t, rent.MinimumBalance(MetadataMaxLen), getLamports(t, env.bank, metadata))
	assert.Equal(t, "Token", getTestMetadata(t, env.bank, metadata).Data.Name)
}

func TestExecute_Tx_Token_Metadata_Program_CreateV3_Errors(t *testing.T) {
	env := newTokenTestEnv(t)
	metadata, _, err := FindMetadataAddress(env.mint)
	require.NoError(t, err)

	wrongAddr := NewCreateMetadataAccountV3Instruction(solana.NewWallet().PublicKey(), env.mint, env.authority, env.payer, env.authority, DataV2{}, true)
	_, err = env.bank.ProcessInstruction(wrongAddr, env.authority, env.payer)
	assert.ErrorIs(t, err, MetadataErrInvalidMetadataKey)

	impostor := solana.NewWallet().PublicKey()
	wrongAuthority := NewCreateMetadataAccountV3Instruction(metadata, env.mint, impostor, env.payer, impostor, DataV2{}, true)
	_, err = env.bank.ProcessInstruction(wrongAuthority, impostor, env.payer)
	assert.ErrorIs(t, err, MetadataErrInvalidMintAuthority)

	tooLong := NewCreateMetadataAccountV3Instruction(metadata, env.mint, env.authority, env.payer, env.authority, DataV2{Symbol: strings.Repeat("S", MetadataMaxSymbolLen+1)}, true)
	_, err = env.bank.ProcessInstruction(tooLong, env.authority, env.payer)
	assert.ErrorIs(t, err, MetadataErrSymbolTooLong)

	createTestMetadata(t, env, env.authority, DataV2{Name: "Token"}, true)
	again := NewCreateMetadataAccountV3Instruction(metadata, env.mint, env.authority, env.payer, env.authority, DataV2{}, true)
	_, err = env.bank.ProcessInstruction(again, env.authority, env.payer)
	assert.ErrorIs(t, err, MetadataErrAlreadyInitialized)
}

func TestExecute_Tx_Token_Metadata_Program_UpdateV2(t *testing.T) {
	env := newTokenTestEnv(t)
	updateAuthority := solana.NewWallet().PublicKey()
	metadata := createTestMetadata(t, env, updateAuthority, DataV2{Name: "Token", Symbol: "TOK"}, true)

	newData := &DataV2{Name: "Renamed", Symbol: "REN", Uri: "https://example.com/renamed.json"}
	_, err := env.bank.ProcessInstruction(NewUpdateMetadataAccountV2Instruction(metadata, updateAuthority, nil, newData, nil, nil), updateAuthority)
	require.NoError(t, err)
	assert.Equal(t, *newData, getTestMetadata(t, env.bank, metadata).Data)

	impostor := solana.NewWallet().PublicKey()
	_, err = env.bank.ProcessInstruction(NewUpdateMetadataAccountV2Instruction(metadata, impostor, nil, newData, nil, nil), impostor)
	assert.ErrorIs(t, err, MetadataErrUpdateAuthorityIncorrect)

	unsigned := NewUpdateMetadataAccountV2Instruction(metadata, updateAuthority, nil, newData, nil, nil)
	unsigned.Accounts[1].IsSigner = false
	_, err = env.bank.ProcessInstruction(unsigned)
	assert.ErrorIs(t, err, MetadataErrUpdateAuthorityIsNotSigner)

	// handing over the update authority
	newAuthority := solana.NewWallet().PublicKey()
	_, err = env.bank.ProcessInstruction(NewUpdateMetadataAccountV2Instruction(metadata, updateAuthority, &newAuthority, nil, nil, nil), updateAuthority)
	require.NoError(t, err)
	assert.Equal(t, newAuthority, getTestMetadata(t, env.bank, metadata).UpdateAuthority)
}

func TestExecute_Tx_Token_Metadata_Program_UpdateV2_Immutable(t *testing.T) {
	env := newTokenTestEnv(t)
	metadata := createTestMetadata(t, env, env.authority, DataV2{Name: "Token"}, true)

	isMutable := false
	_, err := env.bank.ProcessInstruction(NewUpdateMetadataAccountV2Instruction(metadata, env.authority, nil, nil, nil, &isMutable), env.authority)
	require.NoError(t, err)

	_, err = env.bank.ProcessInstruction(NewUpdateMetadataAccountV2Instruction(metadata, env.authority, nil, &DataV2{Name: "Other"}, nil, nil), env.authority)
	assert.ErrorIs(t, err, MetadataErrDataIsImmutable)

	isMutable = true
	_, err = env.bank.ProcessInstruction(NewUpdateMetadataAccountV2Instruction(metadata, env.authority, nil, nil, nil, &isMutable), env.authority)
	assert.ErrorIs(t, err, MetadataErrIsMutableCanOnlyBeFlippedToFalse)

	primarySale := true
	_, err = env.bank.ProcessInstruction(NewUpdateMetadataAccountV2Instruction(metadata, env.authority, nil, nil, &primarySale, nil), env.authority)
	require.NoError(t, err)
	primarySale = false
	_, err = env.bank.ProcessInstruction(NewUpdateMetadataAccountV2Instruction(metadata, env.authority, nil, nil, &primarySale, nil), env.authority)
	assert.ErrorIs(t, err, MetadataErrPrimarySaleCanOnlyBeFlippedToTrue)
}

func TestTokenMetadata_EncodeDecode(t *testing.T) {
	tokenStandard := byte(MetadataTokenStandardFungible)
	md := TokenMetadata{
		Key:                 MetadataKeyMetadataV1,
		UpdateAuthority:     solana.NewWallet().PublicKey(),
		Mint:                solana.NewWallet().PublicKey(),
		Data:                DataV2{Name: "name", Symbol: "sym", Uri: "uri", SellerFeeBasisPoints: 50},
		PrimarySaleHappened: true,
		TokenStandard:       &tokenStandard,
	}

	data := md.Marshal()
	assert.Len(t, data, MetadataMaxLen)
	decoded, err := UnmarshalTokenMetadata(data)
	require.NoError(t, err)
	assert.Equal(t, &md, decoded)

	_, err = UnmarshalTokenMetadata(make([]byte, MetadataMaxLen))
	assert.Error(t, err)
}
