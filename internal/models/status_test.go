package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to DeliveryStatus
		want     bool
	}{
		{StatusQueued, StatusSending, true},
		{StatusPending, StatusSent, true},
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusRead, true},
		{StatusDelivered, StatusRead, true},
		{StatusRead, StatusSent, false},
		{StatusDelivered, StatusSent, false},
		{StatusSent, StatusSent, false},
		{StatusPending, StatusSending, false},
		{StatusSent, StatusFailed, true},
		{StatusQueued, StatusFailed, true},
		{StatusRead, StatusFailed, false},
		{StatusFailed, StatusRead, false},
		{StatusSent, DeliveryStatus("BOUNCED"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParseDeliveryStatus(t *testing.T) {
	s, ok := ParseDeliveryStatus("delivered")
	assert.True(t, ok)
	assert.Equal(t, StatusDelivered, s)

	s, ok = ParseDeliveryStatus(" Read ")
	assert.True(t, ok)
	assert.Equal(t, StatusRead, s)

	_, ok = ParseDeliveryStatus("deleted")
	assert.False(t, ok)
}

func TestMessageTypeFromPlatform(t *testing.T) {
	assert.Equal(t, MessageText, MessageTypeFromPlatform("text"))
	assert.Equal(t, MessageImage, MessageTypeFromPlatform("image"))
	assert.Equal(t, MessageInteractive, MessageTypeFromPlatform("button"))
	assert.Equal(t, MessageOther, MessageTypeFromPlatform("sticker"))
}
