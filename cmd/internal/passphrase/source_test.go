package passphrase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("LEDGER_TEST_PASS", "hunter2")
	s := NewSource("LEDGER_TEST_PASS", "fee collector keystore")
	s.isTerminal = func(int) bool { t.Fatal("terminal consulted"); return false }

	got, err := s.Get()
	require.NoError(t, err)
	require.Equal(t, "hunter2", got)
}

func TestSourceWithoutTerminalFails(t *testing.T) {
	s := NewSource("LEDGER_TEST_PASS_UNSET", "")
	s.isTerminal = func(int) bool { return false }

	_, err := s.Get()
	require.ErrorContains(t, err, "LEDGER_TEST_PASS_UNSET")
}

func TestSourcePromptsOnceAndCaches(t *testing.T) {
	calls := 0
	s := NewSource("", "keystore")
	s.isTerminal = func(int) bool { return true }
	s.readPassword = func(int) ([]byte, error) {
		calls++
		return []byte("correct horse"), nil
	}

	for i := 0; i < 2; i++ {
		got, err := s.Get()
		require.NoError(t, err)
		require.Equal(t, "correct horse", got)
	}
	require.Equal(t, 1, calls)
}

func TestSourceRejectsBlankPromptAndReadErrors(t *testing.T) {
	blank := NewSource("", "keystore")
	blank.isTerminal = func(int) bool { return true }
	blank.readPassword = func(int) ([]byte, error) { return []byte("  "), nil }
	_, err := blank.Get()
	require.Error(t, err)

	broken := NewSource("", "keystore")
	broken.isTerminal = func(int) bool { return true }
	broken.readPassword = func(int) ([]byte, error) { return nil, errors.New("tty gone") }
	_, err = broken.Get()
	require.ErrorContains(t, err, "tty gone")
}
