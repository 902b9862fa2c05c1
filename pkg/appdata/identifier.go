package appdata

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	cid "github.com/ipfs/go-cid"
	mbase "github.com/multiformats/go-multibase"
	mh "github.com/multiformats/go-multihash"
	"golang.org/x/crypto/sha3"
)

// ErrUnsupportedIdentifier is returned for CIDs that are not raw keccak-256 (e.g. the
// sha2-256 dag-pb identifiers of pre-1.0 app data).
var ErrUnsupportedIdentifier = errors.New("unsupported app data identifier")

// Identifier names one canonical serialization.
//
// The CID prefix records the CID version, the codec (raw) and the hash function
// (keccak-256), so identifiers stay distinguishable if either ever changes.
// SchemaVersion is the document's own "version" field; it is part of the hashed
// bytes as well.
type Identifier struct {
	Hash          common.Hash // keccak256(canonical form), the order's appData
	CID           cid.Cid
	SchemaVersion string
}

// Hex is the 0x-prefixed hash carried in the signed order
func (id Identifier) Hex() string {
	return id.Hash.Hex()
}

// String renders the CID in base16 ("f01551b20...")
func (id Identifier) String() string {
	return id.CID.Encode(mbase.MustNewEncoder(mbase.Base16))
}

// Canonical pairs the canonical bytes with the identifier derived from them
type Canonical struct {
	Bytes []byte
	ID    Identifier
}

// Text returns the canonical document as a string (what the order book receives)
func (c Canonical) Text() string {
	return string(c.Bytes)
}

// Keccak256 hashes canonical document bytes
func Keccak256(data []byte) common.Hash {
	var out common.Hash
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	h.Sum(out[:0])
	return out
}

// Identify canonicalizes doc and derives its identifier
func Identify(doc Value) (Canonical, error) {
	raw, err := Canonicalize(doc)
	if err != nil {
		return Canonical{}, err
	}

	id, err := IdentifierFromHash(Keccak256(raw))
	if err != nil {
		return Canonical{}, err
	}
	if obj, ok := doc.AsObject(); ok {
		if v, ok := obj.Get("version"); ok {
			id.SchemaVersion, _ = v.AsString()
		}
	}

	return Canonical{Bytes: raw, ID: id}, nil
}

// IdentifierFromHash wraps a bare appData hash in a CIDv1. SchemaVersion stays empty
// because the hash alone does not reveal it.
func IdentifierFromHash(hash common.Hash) (Identifier, error) {
	digest, err := mh.Encode(hash.Bytes(), mh.KECCAK_256)
	if err != nil {
		return Identifier{}, fmt.Errorf("failed to encode multihash: %w", err)
	}
	return Identifier{
		Hash: hash,
		CID:  cid.NewCidV1(cid.Raw, mh.Multihash(digest)),
	}, nil
}

// ParseIdentifier decodes a CID string (any multibase) back to an identifier
func ParseIdentifier(text string) (Identifier, error) {
	c, err := cid.Decode(text)
	if err != nil {
		return Identifier{}, fmt.Errorf("failed to decode CID: %w", err)
	}

	prefix := c.Prefix()
	if prefix.Version != 1 || prefix.Codec != cid.Raw || prefix.MhType != mh.KECCAK_256 {
		return Identifier{}, fmt.Errorf("%w: version=%d codec=0x%x hash=0x%x",
			ErrUnsupportedIdentifier, prefix.Version, prefix.Codec, prefix.MhType)
	}

	decoded, err := mh.Decode(c.Hash())
	if err != nil {
		return Identifier{}, fmt.Errorf("failed to decode multihash: %w", err)
	}
	if len(decoded.Digest) != common.HashLength {
		return Identifier{}, fmt.Errorf("%w: digest length %d", ErrUnsupportedIdentifier, len(decoded.Digest))
	}

	return Identifier{Hash: common.BytesToHash(decoded.Digest), CID: c}, nil
}
