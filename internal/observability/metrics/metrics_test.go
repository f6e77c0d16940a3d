package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveMessage(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversationMetrics(reg)

	m.ObserveMessage("ok")
	m.ObserveMessage("ok")
	m.ObserveMessage("error")

	expected := `
		# HELP saba_conversation_messages_total Total inbound chat messages processed
		# TYPE saba_conversation_messages_total counter
		saba_conversation_messages_total{status="error"} 1
		saba_conversation_messages_total{status="ok"} 2
	`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "saba_conversation_messages_total")
	require.NoError(t, err)
}

func TestObserveBooking(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversationMetrics(reg)

	m.ObserveBooking("service_account", "permission_denied")
	m.ObserveBooking("delegated_oauth", "booked")

	count := testutil.CollectAndCount(m.bookingsTotal)
	assert.Equal(t, 2, count)
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *ConversationMetrics
	m.ObserveMessage("ok")
	m.ObserveCompletionLatency(0.5)
	m.ObserveLeadCreated()
	m.ObserveBooking("service_account", "booked")
}
