package quotas

import (
	"fmt"
	"strings"

	"ledgerprograms/crypto"
)

const (
	quotasPrefix      = "quotas"
	quotasIndexSuffix = "index"
)

func normaliseProgram(program string) string {
	return strings.ToLower(strings.TrimSpace(program))
}

func counterKey(program string, epoch uint64, addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s/%s/%d/%x", quotasPrefix, normaliseProgram(program), epoch, addr[:]))
}

func epochIndexKey(program string, epoch uint64) []byte {
	return []byte(fmt.Sprintf("%s/%s/%d/%s", quotasPrefix, normaliseProgram(program), epoch, quotasIndexSuffix))
}
