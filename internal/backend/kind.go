package backend

import "fmt"

// Kind identifies the inference backend that owns a model artifact.
type Kind string

const (
	KindTreelite Kind = "treelite"
	KindTVM      Kind = "tvm"
	KindTFLite   Kind = "tflite"
)

// Kinds lists every backend kind.
var Kinds = []Kind{KindTreelite, KindTVM, KindTFLite}

// ParseKind parses a backend kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTreelite, KindTVM, KindTFLite:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) String() string {
	return string(k)
}
