package models

import "strings"

type ConversationStatus string

const (
	ConversationOpen     ConversationStatus = "OPEN"
	ConversationClosed   ConversationStatus = "CLOSED"
	ConversationArchived ConversationStatus = "ARCHIVED"
)

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationOpen, ConversationClosed, ConversationArchived:
		return true
	}
	return false
}

type Channel string

const ChannelWhatsApp Channel = "WHATSAPP"

type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

type MessageType string

const (
	MessageText        MessageType = "TEXT"
	MessageImage       MessageType = "IMAGE"
	MessageVideo       MessageType = "VIDEO"
	MessageAudio       MessageType = "AUDIO"
	MessageDocument    MessageType = "DOCUMENT"
	MessageTemplate    MessageType = "TEMPLATE"
	MessageInteractive MessageType = "INTERACTIVE"
	MessageOther       MessageType = "OTHER"
)

// MessageTypeFromPlatform maps a Cloud API message type ("text", "image", ...)
func MessageTypeFromPlatform(t string) MessageType {
	switch strings.ToLower(t) {
	case "text":
		return MessageText
	case "image":
		return MessageImage
	case "video":
		return MessageVideo
	case "audio", "voice":
		return MessageAudio
	case "document":
		return MessageDocument
	case "template":
		return MessageTemplate
	case "interactive", "button":
		return MessageInteractive
	default:
		return MessageOther
	}
}

type DeliveryStatus string

const (
	StatusQueued    DeliveryStatus = "QUEUED"
	StatusPending   DeliveryStatus = "PENDING"
	StatusSending   DeliveryStatus = "SENDING"
	StatusSent      DeliveryStatus = "SENT"
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusRead      DeliveryStatus = "READ"
	StatusFailed    DeliveryStatus = "FAILED"
)

// pending and sending share a rank
var deliveryRank = map[DeliveryStatus]int{
	StatusQueued:    0,
	StatusPending:   1,
	StatusSending:   1,
	StatusSent:      2,
	StatusDelivered: 3,
	StatusRead:      4,
}

func (s DeliveryStatus) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := deliveryRank[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next goes forward.
// FAILED is reachable from any state except READ and FAILED itself.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	if !next.Valid() || s == StatusFailed {
		return false
	}
	if next == StatusFailed {
		return s != StatusRead
	}
	cur, ok := deliveryRank[s]
	if !ok {
		return true
	}
	return deliveryRank[next] > cur
}

// ParseDeliveryStatus maps a status callback value ("sent", "delivered", ...)
func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	status := DeliveryStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", false
	}
	return status, true
}

type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncFailed  SyncStatus = "FAILED"
)
