package models

import (
	"time"
)

// BusinessProfile is a tenant. BusinessNumber holds the Cloud API phone-number id.
type BusinessProfile struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Name               string    `gorm:"type:varchar(255);not null" json:"name"`
	BusinessNumber     string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"business_number"`
	DisplayPhoneNumber string    `gorm:"type:varchar(32)" json:"display_phone_number"`
	AccessToken        string    `gorm:"type:text" json:"-"`
	CatalogID          string    `gorm:"type:varchar(64)" json:"catalog_id"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BusinessProfile) TableName() string {
	return "business_profiles"
}

// Contact is a counterparty phone number known to one business
type Contact struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	BusinessProfileID uint      `gorm:"not null;uniqueIndex:idx_contacts_business_phone,priority:1" json:"business_profile_id"`
	PhoneNumber       string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_contacts_business_phone,priority:2" json:"phone_number"`
	Name              string    `gorm:"type:varchar(255)" json:"name"`
	Tags              string    `gorm:"type:text" json:"tags"` // JSON array
	WhatsAppOptIn     bool      `gorm:"column:whatsapp_opt_in;not null" json:"whatsapp_opt_in"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}

// Conversation is a thread between a business and a contact
type Conversation struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	BusinessProfileID  uint               `gorm:"not null;index:idx_conversations_lookup,priority:1" json:"business_profile_id"`
	ContactID          uint               `gorm:"not null;index:idx_conversations_lookup,priority:2" json:"contact_id"`
	Contact            *Contact           `gorm:"foreignKey:ContactID;constraint:OnDelete:CASCADE;" json:"contact,omitempty"`
	Status             ConversationStatus `gorm:"type:varchar(20);not null;index:idx_conversations_lookup,priority:3" json:"status"`
	Channel            Channel            `gorm:"type:varchar(20);not null" json:"channel"`
	LastMessageAt      time.Time          `gorm:"index" json:"last_message_at"`
	LastMessagePreview string             `gorm:"type:varchar(512)" json:"last_message_preview"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Message is one inbound or outbound communication. Rows are append-only apart
// from DeliveryStatus and ErrorMessage.
type Message struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	BusinessProfileID uint           `gorm:"not null;index" json:"business_profile_id"`
	ConversationID    uint           `gorm:"not null;index" json:"conversation_id"`
	ContactID         uint           `gorm:"not null;index" json:"contact_id"`
	Direction         Direction      `gorm:"type:varchar(10);not null" json:"direction"`
	Type              MessageType    `gorm:"type:varchar(20);not null" json:"type"`
	Content           string         `gorm:"type:text" json:"content"`
	WhatsAppMessageID *string        `gorm:"column:whatsapp_message_id;type:varchar(255);uniqueIndex" json:"whatsapp_message_id,omitempty"`
	DeliveryStatus    DeliveryStatus `gorm:"type:varchar(20);not null" json:"delivery_status"`
	ErrorMessage      string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

// Product is a catalogue item mirrored to the platform catalog
type Product struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	BusinessProfileID uint       `gorm:"not null;uniqueIndex:idx_products_business_retailer,priority:1" json:"business_profile_id"`
	RetailerID        string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_products_business_retailer,priority:2" json:"retailer_id"`
	Name              string     `gorm:"type:varchar(255);not null" json:"name"`
	Description       string     `gorm:"type:text" json:"description"`
	PriceCents        int64      `gorm:"not null" json:"price_cents"`
	Currency          string     `gorm:"type:varchar(3);not null" json:"currency"`
	ImageURL          string     `gorm:"type:text" json:"image_url"`
	URL               string     `gorm:"type:text" json:"url"`
	Brand             string     `gorm:"type:varchar(255)" json:"brand"`
	InStock           bool       `gorm:"not null" json:"in_stock"`
	ExternalID        string     `gorm:"type:varchar(64)" json:"external_id,omitempty"`
	SyncStatus        SyncStatus `gorm:"type:varchar(20);not null;index" json:"sync_status"`
	SyncAttempts      int        `gorm:"not null" json:"sync_attempts"`
	LastSyncError     string     `gorm:"type:text" json:"last_sync_error,omitempty"`
	SyncedAt          *time.Time `json:"synced_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// QuickReply is a canned response. AutoReply entries answer matching inbound text.
type QuickReply struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	BusinessProfileID uint      `gorm:"not null;index" json:"business_profile_id"`
	Shortcut          string    `gorm:"type:varchar(64);not null" json:"shortcut"`
	Keyword           string    `gorm:"type:varchar(255)" json:"keyword"`
	MatchOperator     string    `gorm:"type:varchar(20)" json:"match_operator"` // equals, contains, starts_with, regex
	Body              string    `gorm:"type:text;not null" json:"body"`
	AutoReply         bool      `gorm:"not null" json:"auto_reply"`
	Priority          int       `gorm:"not null" json:"priority"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (QuickReply) TableName() string {
	return "quick_replies"
}

// Broadcast records one template send to many contacts
type Broadcast struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	BusinessProfileID uint      `gorm:"not null;index" json:"business_profile_id"`
	TemplateName      string    `gorm:"type:varchar(255);not null" json:"template_name"`
	Language          string    `gorm:"type:varchar(20);not null" json:"language"`
	Total             int       `json:"total"`
	Sent              int       `json:"sent"`
	Failed            int       `json:"failed"`
	Status            string    `gorm:"type:varchar(20)" json:"status"` // running, completed
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Broadcast) TableName() string {
	return "broadcasts"
}

// All lists every model managed by migrations, in dependency order.
func All() []interface{} {
	return []interface{}{
		&BusinessProfile{},
		&Contact{},
		&Conversation{},
		&Message{},
		&Product{},
		&QuickReply{},
		&Broadcast{},
	}
}
