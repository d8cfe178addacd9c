package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"ledgerprograms/crypto"
)

func TestLayoutRoundTrip(t *testing.T) {
	owner := crypto.ProgramIDFromName("owner")
	size := DiscriminatorLength + 1 + 2 + 8 + 8 + 32 + 5
	data := NewLayoutWriter("Sample", size).
		U8(7).U16(513).U64(1 << 40).I64(-5).Address(owner).Fixed([]byte("ab"), 5).
		Bytes()
	require.Len(t, data, size)
	require.True(t, HasDiscriminator(data, "Sample"))
	require.False(t, HasDiscriminator(data, "Other"))

	r, err := NewLayoutReader("Sample", data, size)
	require.NoError(t, err)
	require.Equal(t, uint8(7), r.U8())
	require.Equal(t, uint16(513), r.U16())
	require.Equal(t, uint64(1<<40), r.U64())
	require.Equal(t, int64(-5), r.I64())
	require.Equal(t, owner, r.Address())
	require.Equal(t, []byte{'a', 'b', 0, 0, 0}, r.Fixed(5))
	require.NoError(t, r.Err())

	r.U8()
	require.Error(t, r.Err())
}

func TestLayoutReaderRejectsWrongRecord(t *testing.T) {
	data := NewLayoutWriter("Vault", 9).U8(1).Bytes()
	_, err := NewLayoutReader("Bet", data, 9)
	require.Error(t, err)
	_, err = NewLayoutReader("Vault", data, 10)
	require.Error(t, err)
}

func TestRentExemptMinimum(t *testing.T) {
	require.Equal(t, uint64(128*3480*2), RentExemptMinimum(0))
	require.Equal(t, uint64((128+114)*3480*2), RentExemptMinimum(114))
}

func TestProgramErrorMatching(t *testing.T) {
	sentinel := NewProgramError("dice", 6000, KindValidation, "bad roll")
	wrapped := fmt.Errorf("place bet: %w", sentinel)
	require.ErrorIs(t, wrapped, sentinel)
	require.Equal(t, KindValidation, KindOf(wrapped))
	require.NotErrorIs(t, wrapped, NewProgramError("payments", 6000, KindValidation, "bad roll"))
	require.Equal(t, KindInternal, KindOf(errors.New("plain")))
}
