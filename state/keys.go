package state

import "github.com/xraph/multitoken/token"

// Key layout. Every record is addressed by a one-byte prefix followed by the
// token ID; balance rows add a length byte so one token's holders can be
// scanned without matching a longer token ID that shares its prefix.
//
//	t<token>            token type (1 byte)
//	n<token>            NFT owner
//	s<token>            FT supply (uint64 big endian)
//	b<len><token><acct> FT balance (uint64 big endian)
//	a<token>            approvals (bson)
//	q<token>            next approval sequence (uint64 big endian)
//	m<token>            metadata (bson)
//	h                   ledger header (bson)
const (
	prefixType     byte = 't'
	prefixOwner    byte = 'n'
	prefixSupply   byte = 's'
	prefixBalance  byte = 'b'
	prefixApproval byte = 'a'
	prefixNextSeq  byte = 'q'
	prefixMetadata byte = 'm'
)

var headerKey = []byte{'h'}

func tokenKey(prefix byte, id token.ID) []byte {
	k := make([]byte, 0, 1+len(id))
	k = append(k, prefix)
	return append(k, id...)
}

func balancePrefix(id token.ID) []byte {
	k := make([]byte, 0, 2+len(id))
	k = append(k, prefixBalance, byte(len(id)))
	return append(k, id...)
}

func balanceKey(id token.ID, account token.AccountID) []byte {
	return append(balancePrefix(id), account...)
}
