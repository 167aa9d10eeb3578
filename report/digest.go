package report

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Digest returns a CIDv1 string using the raw codec and a sha2-256 multihash of the document bytes.
func Digest(data []byte) (string, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}
