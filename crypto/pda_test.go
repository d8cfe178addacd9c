package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindProgramAddressIsDeterministicAndOffCurve(t *testing.T) {
	program := ProgramIDFromName("dice")
	house := bytes.Repeat([]byte{0x11}, 32)

	addr1, bump1, err := FindProgramAddress([][]byte{[]byte("vault"), house}, program)
	require.NoError(t, err)
	addr2, bump2, err := FindProgramAddress([][]byte{[]byte("vault"), house}, program)
	require.NoError(t, err)

	require.Equal(t, addr1, addr2)
	require.Equal(t, bump1, bump2)
	require.False(t, IsOnCurve(addr1[:]))

	recreated, err := CreateProgramAddress([][]byte{[]byte("vault"), house, {bump1}}, program)
	require.NoError(t, err)
	require.Equal(t, addr1, recreated)
}

func TestFindProgramAddressSeparatesNamespacesAndPrograms(t *testing.T) {
	dice := ProgramIDFromName("dice")
	payments := ProgramIDFromName("payments")
	owner := bytes.Repeat([]byte{0x42}, 32)

	vault, _, err := FindProgramAddress([][]byte{[]byte("vault"), owner}, dice)
	require.NoError(t, err)
	bet, _, err := FindProgramAddress([][]byte{[]byte("bet"), owner}, dice)
	require.NoError(t, err)
	other, _, err := FindProgramAddress([][]byte{[]byte("vault"), owner}, payments)
	require.NoError(t, err)

	require.NotEqual(t, vault, bet)
	require.NotEqual(t, vault, other)
}

func TestCreateProgramAddressRejectsCurvePointsAndBadSeeds(t *testing.T) {
	program := ProgramIDFromName("dice")

	_, err := CreateProgramAddress([][]byte{bytes.Repeat([]byte{1}, MaxSeedLength+1)}, program)
	require.True(t, errors.Is(err, ErrMaxSeedLengthExceeded))

	seeds := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(seeds, program)
	require.ErrorIs(t, err, ErrTooManySeeds)

	// Roughly half of all digests land on the curve; at least one of the
	// first 64 bumps must be rejected with ErrOnCurve.
	rejected := false
	for bump := 0; bump < 64 && !rejected; bump++ {
		_, err := CreateProgramAddress([][]byte{[]byte("probe"), {byte(bump)}}, program)
		if errors.Is(err, ErrOnCurve) {
			rejected = true
		}
	}
	require.True(t, rejected)
}

func TestKeyAddressIsOnCurve(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	addr := key.Address()
	require.True(t, IsOnCurve(addr[:]))
}
