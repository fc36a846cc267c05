package token

import "fmt"

// Type selects the sub-ledger a token lives in.
type Type uint8

// Token types. The zero value is invalid so a missing index row can never be
// mistaken for a real type.
const (
	Fungible    Type = 1
	NonFungible Type = 2
)

// String returns the wire name of the type.
func (t Type) String() string {
	switch t {
	case Fungible:
		return "fungible"
	case NonFungible:
		return "non_fungible"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the defined types.
func (t Type) Valid() bool {
	return t == Fungible || t == NonFungible
}

// ParseType parses the wire name of a type.
func ParseType(s string) (Type, error) {
	switch s {
	case "fungible", "ft":
		return Fungible, nil
	case "non_fungible", "nft":
		return NonFungible, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(data []byte) error {
	parsed, err := ParseType(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
