package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"ledgerprograms/core/events"
	"ledgerprograms/core/types"
)

func TestEventMetricsCountCommittedEvents(t *testing.T) {
	m := Events()
	before := testutil.ToFloat64(m.volume.WithLabelValues("fee"))

	m.Emit(events.Committed{Payload: &types.Event{
		Type:       "payments.processed",
		Attributes: map[string]string{"fee": "25", "net": "975"},
	}})
	m.Emit(events.Committed{Payload: &types.Event{
		Type:       "dice.bet_resolved",
		Attributes: map[string]string{"won": "true"},
	}})

	require.Equal(t, before+25, testutil.ToFloat64(m.volume.WithLabelValues("fee")))
	require.GreaterOrEqual(t, testutil.ToFloat64(m.emitted.WithLabelValues("payments.processed")), 1.0)
	require.GreaterOrEqual(t, testutil.ToFloat64(m.settled.WithLabelValues("player_won")), 1.0)
}
