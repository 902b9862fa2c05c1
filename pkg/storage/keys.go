package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema:
//
//   ord:<uid>                       → order JSON
//   own:<owner>:<validTo>:<uid>     → uid (index, validTo zero-padded)
//   app:<hash>                      → full app-data document

const (
	prefixOrder   = "ord:"
	prefixOwner   = "own:"
	prefixAppData = "app:"
)

func orderKey(uid string) []byte {
	return []byte(prefixOrder + uid)
}

// ownerKey sorts an owner's orders by expiry
func ownerKey(owner common.Address, validTo uint32, uid string) []byte {
	return []byte(fmt.Sprintf("%s%s:%010d:%s", prefixOwner, owner.Hex(), validTo, uid))
}

func ownerPrefix(owner common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixOwner, owner.Hex()))
}

func appDataKey(hash common.Hash) []byte {
	return []byte(prefixAppData + hash.Hex())
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
