package state

import (
	"fmt"

	"ledgerprograms/crypto"
)

var (
	accountPrefix       = []byte("account:")
	clockKeyBytes       = []byte("ledger/clock")
	processedDigestFmt  = "ledger/processed/%x"
	programKVPrefixFmt  = "program/%x/"
	stateVersionKeyByte = []byte("state/version")
)

// ProcessedDigestKey is the KV key marking a committed transaction digest.
func ProcessedDigestKey(digest crypto.Hash) []byte {
	return []byte(fmt.Sprintf(processedDigestFmt, digest[:]))
}

// ProgramKVKey namespaces a program-private KV key.
func ProgramKVKey(program crypto.Address, key []byte) []byte {
	prefix := fmt.Sprintf(programKVPrefixFmt, program[:])
	return append([]byte(prefix), key...)
}
