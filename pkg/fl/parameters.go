package fl

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var canonical = mustCanonicalEncMode()

func mustCanonicalEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}

	return em
}

// EncodeParameters serializes parameters with CBOR core deterministic encoding,
// so equal payloads always produce equal bytes.
func EncodeParameters(p Parameters) ([]byte, error) {
	data, err := canonical.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}

	return data, nil
}

func DecodeParameters(data []byte) (Parameters, error) {
	var p Parameters
	if err := cbor.Unmarshal(data, &p); err != nil {
		return Parameters{}, fmt.Errorf("failed to decode parameters: %w", err)
	}

	return p, nil
}
