package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudEvent_RoundTrip(t *testing.T) {
	type payload struct {
		BookingID string `json:"booking_id"`
		Amount    int64  `json:"amount"`
	}

	ce, err := NewCloudEvent("service-booking", "booking.completed", payload{BookingID: "b-1", Amount: 15000})
	require.NoError(t, err)
	ce = ce.WithSubject("b-1")

	assert.Equal(t, "1.0", ce.SpecVersion)
	assert.NotEmpty(t, ce.ID)
	assert.Equal(t, "b-1", ce.Subject)

	raw, err := json.Marshal(ce)
	require.NoError(t, err)

	parsed, err := ParseCloudEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "booking.completed", parsed.Type)

	var got payload
	require.NoError(t, parsed.ParseData(&got))
	assert.Equal(t, payload{BookingID: "b-1", Amount: 15000}, got)
}

func TestParseCloudEvent_Malformed(t *testing.T) {
	_, err := ParseCloudEvent([]byte("{not json"))
	assert.Error(t, err)
}
