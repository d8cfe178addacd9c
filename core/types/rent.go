package types

const (
	// AccountStorageOverhead is charged on top of the data length of every
	// account.
	AccountStorageOverhead = 128
	// LamportsPerByteYear is the rent rate.
	LamportsPerByteYear = 3480
	// ExemptionThresholdYears is how many years of rent must be prepaid for
	// an account to be exempt.
	ExemptionThresholdYears = 2
)

// RentExemptMinimum returns the lamport balance an account with dataLen bytes
// of data must hold.
func RentExemptMinimum(dataLen int) uint64 {
	return uint64(AccountStorageOverhead+dataLen) * LamportsPerByteYear * ExemptionThresholdYears
}
