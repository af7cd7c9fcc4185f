// Package inbox records inbound WhatsApp traffic per business: it resolves the
// tenant, upserts the contact and its open conversation, appends messages and
// applies delivery-status callbacks.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-inbox/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreviewLength is the maximum number of characters kept in a conversation preview.
const PreviewLength = 120

var (
	ErrUnknownBusiness     = errors.New("unknown business number")
	ErrInvalidMessage      = errors.New("invalid message")
	ErrConversationOpen    = errors.New("contact already has an open conversation")
	ErrConversationMissing = errors.New("conversation not found")

	errDuplicateMessage = errors.New("duplicate message")
)

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// InboundMessage is one message delivered by the platform webhook.
type InboundMessage struct {
	PhoneNumberID     string
	From              string
	ProfileName       string
	WhatsAppMessageID string
	Type              models.MessageType
	Content           string
}

// InboundResult describes what RecordInbound wrote.
type InboundResult struct {
	Business        models.BusinessProfile
	Contact         models.Contact
	Conversation    models.Conversation
	Message         models.Message
	NewContact      bool
	NewConversation bool
	Duplicate       bool
}

// ResolveBusiness finds the tenant that owns a Cloud API phone-number id.
func (s *Service) ResolveBusiness(ctx context.Context, phoneNumberID string) (*models.BusinessProfile, error) {
	return resolveBusiness(s.db.WithContext(ctx), phoneNumberID)
}

func resolveBusiness(tx *gorm.DB, phoneNumberID string) (*models.BusinessProfile, error) {
	var business models.BusinessProfile
	res := tx.Where("business_number = ?", phoneNumberID).Limit(1).Find(&business)
	if res.Error != nil {
		return nil, fmt.Errorf("resolve business %s: %w", phoneNumberID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBusiness, phoneNumberID)
	}
	return &business, nil
}

// RecordInbound stores an inbound message in a single transaction. A message
// whose WhatsApp id was already recorded is returned with Duplicate set and
// nothing is written.
func (s *Service) RecordInbound(ctx context.Context, in InboundMessage) (*InboundResult, error) {
	if in.PhoneNumberID == "" || in.From == "" {
		return nil, fmt.Errorf("%w: phone number id and sender are required", ErrInvalidMessage)
	}
	if in.Type == "" {
		in.Type = models.MessageText
	}

	var res InboundResult
	now := s.now().UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		business, err := resolveBusiness(tx, in.PhoneNumberID)
		if err != nil {
			return err
		}
		res.Business = *business

		if in.WhatsAppMessageID != "" {
			existing, err := findByWhatsAppID(tx, in.WhatsAppMessageID)
			if err != nil {
				return err
			}
			if existing != nil {
				res.Message = *existing
				res.Duplicate = true
				return nil
			}
		}

		contact, created, err := upsertContact(tx, business.ID, in.From, in.ProfileName)
		if err != nil {
			return err
		}
		res.Contact, res.NewContact = *contact, created

		conv, created, err := upsertConversation(tx, business.ID, contact.ID, Preview(in.Content), now)
		if err != nil {
			return err
		}
		res.Conversation, res.NewConversation = *conv, created

		msg := models.Message{
			BusinessProfileID: business.ID,
			ConversationID:    conv.ID,
			ContactID:         contact.ID,
			Direction:         models.DirectionInbound,
			Type:              in.Type,
			Content:           in.Content,
			DeliveryStatus:    models.StatusSent,
		}
		if in.WhatsAppMessageID != "" {
			id := in.WhatsAppMessageID
			msg.WhatsAppMessageID = &id
		}

		inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&msg)
		if inserted.Error != nil {
			return fmt.Errorf("create message: %w", inserted.Error)
		}
		if inserted.RowsAffected == 0 {
			// a concurrent delivery of the same id won; roll back the preview refresh
			return errDuplicateMessage
		}
		res.Message = msg
		return nil
	})

	if errors.Is(err, errDuplicateMessage) {
		existing, ferr := findByWhatsAppID(s.db.WithContext(ctx), in.WhatsAppMessageID)
		if ferr != nil {
			return nil, ferr
		}
		if existing == nil {
			return nil, fmt.Errorf("message %s vanished after conflict", in.WhatsAppMessageID)
		}
		return &InboundResult{Business: res.Business, Message: *existing, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func findByWhatsAppID(tx *gorm.DB, whatsappMessageID string) (*models.Message, error) {
	var msg models.Message
	res := tx.Where("whatsapp_message_id = ?", whatsappMessageID).Limit(1).Find(&msg)
	if res.Error != nil {
		return nil, fmt.Errorf("find message %s: %w", whatsappMessageID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &msg, nil
}

// upsertContact returns the contact for (business, phone), creating it on first
// contact. The bool reports whether this call created the row.
func upsertContact(tx *gorm.DB, businessID uint, phone, profileName string) (*models.Contact, bool, error) {
	var contact models.Contact
	found, err := findContact(tx, businessID, phone, &contact)
	if err != nil {
		return nil, false, err
	}
	if found {
		if contact.Name == "" && profileName != "" {
			if err := tx.Model(&contact).Update("name", profileName).Error; err != nil {
				return nil, false, fmt.Errorf("update contact name: %w", err)
			}
			contact.Name = profileName
		}
		return &contact, false, nil
	}

	contact = models.Contact{
		BusinessProfileID: businessID,
		PhoneNumber:       phone,
		Name:              profileName,
		Tags:              "[]",
		WhatsAppOptIn:     true,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&contact)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create contact: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return &contact, true, nil
	}

	contact = models.Contact{}
	found, err = findContact(tx, businessID, phone, &contact)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, fmt.Errorf("contact %s missing after conflict", phone)
	}
	return &contact, false, nil
}

// findContact locks the contact row for the rest of the transaction, which
// serializes the open-conversation lookup for one sender. SQLite ignores the
// clause and serializes writers on its own.
func findContact(tx *gorm.DB, businessID uint, phone string, dst *models.Contact) (bool, error) {
	res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("business_profile_id = ? AND phone_number = ?", businessID, phone).Limit(1).Find(dst)
	if res.Error != nil {
		return false, fmt.Errorf("find contact: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// upsertConversation reuses the open conversation for the contact or opens a
// new one, and stamps it with the latest preview.
func upsertConversation(tx *gorm.DB, businessID, contactID uint, preview string, at time.Time) (*models.Conversation, bool, error) {
	var conv models.Conversation
	res := tx.Where("business_profile_id = ? AND contact_id = ? AND status = ?", businessID, contactID, models.ConversationOpen).
		Order("id DESC").Limit(1).Find(&conv)
	if res.Error != nil {
		return nil, false, fmt.Errorf("find open conversation: %w", res.Error)
	}

	if res.RowsAffected > 0 {
		err := tx.Model(&conv).Updates(map[string]interface{}{
			"last_message_at":      at,
			"last_message_preview": preview,
		}).Error
		if err != nil {
			return nil, false, fmt.Errorf("refresh conversation: %w", err)
		}
		conv.LastMessageAt = at
		conv.LastMessagePreview = preview
		return &conv, false, nil
	}

	conv = models.Conversation{
		BusinessProfileID:  businessID,
		ContactID:          contactID,
		Status:             models.ConversationOpen,
		Channel:            models.ChannelWhatsApp,
		LastMessageAt:      at,
		LastMessagePreview: preview,
	}
	if err := tx.Create(&conv).Error; err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	return &conv, true, nil
}

// Preview truncates content to PreviewLength characters.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewLength {
		return content
	}
	return string(runes[:PreviewLength])
}
