package crypto

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/uhyunpark/hookorder/pkg/order"
)

// SettlementContract is the GPv2Settlement deployment, same address on every
// supported chain
var SettlementContract = common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41")

// OrderUIDLength is digest(32) + owner(20) + validTo(4)
const OrderUIDLength = 56

// SigningScheme selects what exactly the key signs
type SigningScheme string

const (
	SchemeEIP712  SigningScheme = "eip712"  // the EIP-712 digest itself
	SchemeEthSign SigningScheme = "ethsign" // EIP-191 personal message over the digest
)

// Domain is the EIP-712 domain. Two domains differing in any field produce
// unrelated digests, so a signature never carries across chains.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// DomainFor returns the settlement domain on the given chain
func DomainFor(chainID uint64) Domain {
	return Domain{
		Name:              "Gnosis Protocol",
		Version:           "v2",
		ChainID:           new(big.Int).SetUint64(chainID),
		VerifyingContract: SettlementContract,
	}
}

func (d Domain) typed() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           (*math.HexOrDecimal256)(d.ChainID),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

var orderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": []apitypes.Type{
		{Name: "sellToken", Type: "address"},
		{Name: "buyToken", Type: "address"},
		{Name: "receiver", Type: "address"},
		{Name: "sellAmount", Type: "uint256"},
		{Name: "buyAmount", Type: "uint256"},
		{Name: "validTo", Type: "uint32"},
		{Name: "appData", Type: "bytes32"},
		{Name: "feeAmount", Type: "uint256"},
		{Name: "kind", Type: "string"},
		{Name: "partiallyFillable", Type: "bool"},
		{Name: "sellTokenBalance", Type: "string"},
		{Name: "buyTokenBalance", Type: "string"},
	},
}

// KeySigner signs 32-byte hashes and returns 65-byte [R || S || V]
// signatures. V may be 0/1 or 27/28.
type KeySigner interface {
	Address() common.Address
	Sign(hash []byte) ([]byte, error)
}

// HasKey reports whether key holds a usable value. A nil pointer stored in
// the interface counts as missing.
func HasKey(key KeySigner) bool {
	if key == nil {
		return false
	}
	v := reflect.ValueOf(key)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return !v.IsNil()
	}
	return true
}

// Signature is a scheme-tagged 65-byte signature with V in {27, 28}
type Signature struct {
	Scheme SigningScheme
	Data   []byte
}

func (s Signature) Hex() string {
	return hexutil.Encode(s.Data)
}

// RSV splits the signature into its components
func (s Signature) RSV() (r, ss *big.Int, v uint8, err error) {
	return SignatureToRSV(s.Data)
}

// ParseSignature decodes a 0x-prefixed 65-byte signature
func ParseSignature(scheme SigningScheme, text string) (Signature, error) {
	switch scheme {
	case SchemeEIP712, SchemeEthSign:
	default:
		return Signature{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	data, err := hexutil.Decode(text)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(data) != 65 {
		return Signature{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(data))
	}
	return Signature{Scheme: scheme, Data: data}, nil
}

// OrderSigner hashes and signs orders for one domain
type OrderSigner struct {
	domain Domain
}

func NewOrderSigner(domain Domain) *OrderSigner {
	return &OrderSigner{domain: domain}
}

func (e *OrderSigner) Domain() Domain {
	return e.domain
}

// TypedData builds the EIP-712 payload for an order, the same structure a
// wallet receives for eth_signTypedData_v4
func (e *OrderSigner) TypedData(o *order.Order) (apitypes.TypedData, error) {
	if err := o.Validate(); err != nil {
		return apitypes.TypedData{}, fieldFailure(err)
	}
	if e.domain.ChainID == nil || e.domain.ChainID.Sign() <= 0 {
		return apitypes.TypedData{}, &SigningError{Field: "chainId", Err: errors.New("domain has no chain id")}
	}

	return apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain:      e.domain.typed(),
		Message: apitypes.TypedDataMessage{
			"sellToken":         o.SellToken.Hex(),
			"buyToken":          o.BuyToken.Hex(),
			"receiver":          o.Receiver.Hex(),
			"sellAmount":        o.SellAmount.String(),
			"buyAmount":         o.BuyAmount.String(),
			"validTo":           o.ValidToString(),
			"appData":           o.AppData.Hex(),
			"feeAmount":         o.FeeAmount.String(),
			"kind":              string(o.Kind),
			"partiallyFillable": o.PartiallyFillable,
			"sellTokenBalance":  string(o.SellTokenBalance),
			"buyTokenBalance":   string(o.BuyTokenBalance),
		},
	}, nil
}

// DomainSeparator is the EIP-712 hash of the domain alone
func (e *OrderSigner) DomainSeparator() (common.Hash, error) {
	typedData := apitypes.TypedData{Types: orderTypes, Domain: e.domain.typed()}
	sep, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}
	return common.BytesToHash(sep), nil
}

// HashOrder returns keccak256("\x19\x01" || domainSeparator || structHash)
func (e *OrderSigner) HashOrder(o *order.Order) (common.Hash, error) {
	typedData, err := e.TypedData(o)
	if err != nil {
		return common.Hash{}, err
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}

	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := make([]byte, 0, 66)
	rawData = append(rawData, 0x19, 0x01)
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, structHash...)
	return crypto.Keccak256Hash(rawData), nil
}

// SignOrder signs an order under the given scheme. The order is validated
// first; nothing is signed for an incomplete order.
func (e *OrderSigner) SignOrder(key KeySigner, o *order.Order, scheme SigningScheme) (Signature, error) {
	if !HasKey(key) {
		return Signature{}, &SigningError{Field: "key", Err: ErrNoKey}
	}

	digest, err := e.HashOrder(o)
	if err != nil {
		return Signature{}, err
	}

	hash, err := schemeHash(scheme, digest)
	if err != nil {
		return Signature{}, err
	}

	sig, err := key.Sign(hash)
	if err != nil {
		return Signature{}, &SigningError{Field: "key", Err: err}
	}
	if len(sig) != 65 {
		return Signature{}, &SigningError{Field: "key", Err: fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))}
	}

	data := common.CopyBytes(sig)
	if data[64] < 27 {
		data[64] += 27
	}
	return Signature{Scheme: scheme, Data: data}, nil
}

// RecoverOrderOwner returns the address that produced sig over o
func (e *OrderSigner) RecoverOrderOwner(o *order.Order, sig Signature) (common.Address, error) {
	digest, err := e.HashOrder(o)
	if err != nil {
		return common.Address{}, err
	}
	hash, err := schemeHash(sig.Scheme, digest)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(hash, sig.Data)
}

// VerifyOrder reports whether sig over o was made by owner
func (e *OrderSigner) VerifyOrder(o *order.Order, sig Signature, owner common.Address) (bool, error) {
	recovered, err := e.RecoverOrderOwner(o, sig)
	if err != nil {
		return false, err
	}
	return recovered == owner, nil
}

// TypedDataJSON renders the typed data for wallet-side signing
func (e *OrderSigner) TypedDataJSON(o *order.Order) (string, error) {
	typedData, err := e.TypedData(o)
	if err != nil {
		return "", err
	}
	jsonBytes, err := json.MarshalIndent(typedData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonBytes), nil
}

// OrderUID packs digest || owner || validTo (big-endian)
func OrderUID(digest common.Hash, owner common.Address, validTo uint32) []byte {
	uid := make([]byte, OrderUIDLength)
	copy(uid[:32], digest[:])
	copy(uid[32:52], owner[:])
	binary.BigEndian.PutUint32(uid[52:], validTo)
	return uid
}

// ParseOrderUID splits a hex order UID into its parts
func ParseOrderUID(text string) (digest common.Hash, owner common.Address, validTo uint32, err error) {
	uid, err := hexutil.Decode(text)
	if err != nil {
		return digest, owner, 0, fmt.Errorf("invalid order uid: %w", err)
	}
	if len(uid) != OrderUIDLength {
		return digest, owner, 0, fmt.Errorf("invalid order uid length %d", len(uid))
	}
	copy(digest[:], uid[:32])
	copy(owner[:], uid[32:52])
	return digest, owner, binary.BigEndian.Uint32(uid[52:]), nil
}

func schemeHash(scheme SigningScheme, digest common.Hash) ([]byte, error) {
	switch scheme {
	case SchemeEIP712:
		return digest.Bytes(), nil
	case SchemeEthSign:
		return accounts.TextHash(digest.Bytes()), nil
	default:
		return nil, &SigningError{Field: "signingScheme", Err: fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)}
	}
}

func fieldFailure(err error) error {
	var fe *order.FieldError
	if errors.As(err, &fe) {
		return &SigningError{Field: fe.Field, Err: fe.Err}
	}
	return &SigningError{Field: "order", Err: err}
}
