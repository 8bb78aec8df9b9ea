package memtext

import "fmt"

// Serializer is the pluggable collaborator responsible for turning values
// into wire bytes and back. The client treats the result as opaque: it
// only carries the byte length on the wire. decode(encode(v)) must equal
// v for every value a caller chooses to store.
type Serializer interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// RawSerializer is the degenerate identity serializer: it requires values
// to already be []byte and hands back []byte unchanged. It is the
// built-in default, matching the "opaque byte payload" case the envelope
// is defined around; any richer encoding is the caller's concern.
type RawSerializer struct{}

var _ Serializer = RawSerializer{}

func (RawSerializer) Encode(value any) ([]byte, error) {
	b, ok := value.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: RawSerializer requires a []byte value, got %T", ErrUsageError, value)
	}
	return b, nil
}

func (RawSerializer) Decode(data []byte) (any, error) {
	return data, nil
}
