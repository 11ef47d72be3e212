package common

import (
	ethCommon "github.com/ethereum/go-ethereum/common"
	ethMath "github.com/ethereum/go-ethereum/common/math"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	ethSigner "github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/iden3/go-iden3-crypto/babyjub"
)

// AccountCreationAuth is the authorization signed by an ethereum address to
// let a coordinator create a rollup account for its babyjubjub key through a
// L1CoordinatorTx
type AccountCreationAuth struct {
	EthAddr   ethCommon.Address
	BJJ       babyjub.PublicKeyComp
	Signature []byte
}

const (
	// AccountCreationAuthMsg is the message that is signed to authorize a
	// rollup account creation
	AccountCreationAuthMsg = "Account creation"
	// EIP712Version is the used version of the EIP-712
	EIP712Version = "1"
	// EIP712Provider defines the Provider for the EIP-712
	EIP712Provider = "Tokamak Network"
)

// typedData returns the EIP-712 typed data of the AccountCreationAuth
func (a *AccountCreationAuth) typedData(chainID uint16,
	rollupAddr ethCommon.Address) ethSigner.TypedData {
	return ethSigner.TypedData{
		Types: ethSigner.Types{
			"EIP712Domain": []ethSigner.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Authorise": []ethSigner.Type{
				{Name: "Provider", Type: "string"},
				{Name: "Authorisation", Type: "string"},
				{Name: "BJJKey", Type: "bytes32"},
			},
		},
		PrimaryType: "Authorise",
		Domain: ethSigner.TypedDataDomain{
			Name:              EIP712Provider,
			Version:           EIP712Version,
			ChainId:           ethMath.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: rollupAddr.Hex(),
		},
		Message: ethSigner.TypedDataMessage{
			"Provider":      EIP712Provider,
			"Authorisation": AccountCreationAuthMsg,
			"BJJKey":        SwapEndianness(a.BJJ[:]),
		},
	}
}

// HashToSign returns the hash to be signed by the Ethereum address to authorize
// the account creation, which follows the EIP-712 encoding
func (a *AccountCreationAuth) HashToSign(chainID uint16,
	rollupAddr ethCommon.Address) ([]byte, error) {
	return HashTypedData(a.typedData(chainID, rollupAddr))
}

// Sign signs the account creation authorization message using the provided
// `signHash` function, and stores the signature in `a.Signature`. `signHash`
// should do an ethereum signature using the account corresponding to
// `a.EthAddr`.
func (a *AccountCreationAuth) Sign(signHash func(hash []byte) ([]byte, error),
	chainID uint16, rollupAddr ethCommon.Address) error {
	hash, err := a.HashToSign(chainID, rollupAddr)
	if err != nil {
		return Wrap(err)
	}
	sig, err := signHash(hash)
	if err != nil {
		return Wrap(err)
	}
	sig[64] += 27
	a.Signature = sig
	return nil
}

// RecoverEthAddr returns the ethereum address that signed the authorization
func (a *AccountCreationAuth) RecoverEthAddr(chainID uint16,
	rollupAddr ethCommon.Address) (ethCommon.Address, error) {
	hash, err := a.HashToSign(chainID, rollupAddr)
	if err != nil {
		return ethCommon.Address{}, Wrap(err)
	}
	return RecoverSigner(hash, a.Signature)
}

// HashTypedData returns the keccak256 of "\x19\x01" || domainSeparator ||
// hashStruct(message) of the typed data
func HashTypedData(signerData ethSigner.TypedData) ([]byte, error) {
	domainSeparator, err := signerData.HashStruct("EIP712Domain", signerData.Domain.Map())
	if err != nil {
		return nil, Wrap(err)
	}
	typedDataHash, err := signerData.HashStruct(signerData.PrimaryType, signerData.Message)
	if err != nil {
		return nil, Wrap(err)
	}
	rawData := []byte{0x19, 0x01} // "\x19\x01"
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, typedDataHash...)
	return ethCrypto.Keccak256(rawData), nil
}

// RecoverSigner returns the address that produced the 65 byte signature
// [r | s | v] of hash, where v is 27 or 28
func RecoverSigner(hash, signature []byte) (ethCommon.Address, error) {
	if len(signature) != 65 { //nolint:gomnd
		return ethCommon.Address{}, Wrap(ErrInvalidSignature)
	}
	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[64] >= 27 { //nolint:gomnd
		sig[64] -= 27
	}
	pubKey, err := ethCrypto.SigToPub(hash, sig)
	if err != nil {
		return ethCommon.Address{}, Wrap(ErrInvalidSignature)
	}
	return ethCrypto.PubkeyToAddress(*pubKey), nil
}
