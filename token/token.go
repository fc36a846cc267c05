// Package token provides the value types shared by every part of the ledger:
// token and account identifiers, the token type tag, amounts, approvals,
// metadata and the read-only token view.
package token

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxIDLength is the longest token or account identifier accepted, in bytes.
const MaxIDLength = 64

// Reserved is the token and account identifier used by the storage cost
// probe. It is never valid for a real token or account.
var Reserved = strings.Repeat("a", MaxIDLength)

// Validation errors.
var (
	ErrInvalidID      = errors.New("token: invalid token id")
	ErrInvalidAccount = errors.New("token: invalid account id")
	ErrInvalidType    = errors.New("token: invalid token type")
	ErrInvalidAmount  = errors.New("token: invalid amount")
	ErrAmountOverflow = errors.New("token: amount overflow")
)

// ID identifies one token line. It is opaque to the ledger and its type
// never changes once minted.
type ID string

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// Validate reports whether the identifier may name a real token.
func (id ID) Validate() error {
	if err := validateIdent(string(id)); err != nil {
		return fmt.Errorf("%w %q: %s", ErrInvalidID, string(id), err.Error())
	}
	return nil
}

// AccountID identifies a holder, owner, sender or receiver.
type AccountID string

// String implements fmt.Stringer.
func (a AccountID) String() string { return string(a) }

// Validate reports whether the identifier may name a real account.
func (a AccountID) Validate() error {
	if err := validateIdent(string(a)); err != nil {
		return fmt.Errorf("%w %q: %s", ErrInvalidAccount, string(a), err.Error())
	}
	return nil
}

func validateIdent(s string) error {
	switch {
	case s == "":
		return errors.New("empty")
	case len(s) > MaxIDLength:
		return fmt.Errorf("longer than %d bytes", MaxIDLength)
	case s == Reserved:
		return errors.New("reserved")
	case !utf8.ValidString(s):
		return errors.New("not valid utf-8")
	}
	return nil
}
