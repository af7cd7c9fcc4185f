package inbox

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-inbox/internal/models"

	"gorm.io/gorm"
)

// OutboundMessage is a message a business is about to send.
type OutboundMessage struct {
	BusinessProfileID uint
	To                string
	Type              models.MessageType
	Content           string
}

// RecordOutbound queues an outbound message before it is handed to the
// platform. The contact and open conversation are upserted like inbound traffic.
func (s *Service) RecordOutbound(ctx context.Context, out OutboundMessage) (*models.Message, error) {
	if out.BusinessProfileID == 0 || out.To == "" {
		return nil, fmt.Errorf("%w: business and recipient are required", ErrInvalidMessage)
	}
	if out.Type == "" {
		out.Type = models.MessageText
	}

	var msg models.Message
	now := s.now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contact, _, err := upsertContact(tx, out.BusinessProfileID, out.To, "")
		if err != nil {
			return err
		}
		conv, _, err := upsertConversation(tx, out.BusinessProfileID, contact.ID, Preview(out.Content), now)
		if err != nil {
			return err
		}
		msg = models.Message{
			BusinessProfileID: out.BusinessProfileID,
			ConversationID:    conv.ID,
			ContactID:         contact.ID,
			Direction:         models.DirectionOutbound,
			Type:              out.Type,
			Content:           out.Content,
			DeliveryStatus:    models.StatusQueued,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("create outbound message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkSent stores the platform message id on a queued message so later
// status callbacks can find it.
func (s *Service) MarkSent(ctx context.Context, msg *models.Message, whatsappMessageID string) error {
	columns := map[string]interface{}{"delivery_status": models.StatusSent}
	if whatsappMessageID != "" {
		columns["whatsapp_message_id"] = whatsappMessageID
	}
	if err := s.db.WithContext(ctx).Model(msg).UpdateColumns(columns).Error; err != nil {
		return fmt.Errorf("mark message %d sent: %w", msg.ID, err)
	}
	msg.DeliveryStatus = models.StatusSent
	if whatsappMessageID != "" {
		id := whatsappMessageID
		msg.WhatsAppMessageID = &id
	}
	return nil
}

// MarkFailed records a send failure on a queued message.
func (s *Service) MarkFailed(ctx context.Context, msg *models.Message, cause error) error {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	err := s.db.WithContext(ctx).Model(msg).UpdateColumns(map[string]interface{}{
		"delivery_status": models.StatusFailed,
		"error_message":   reason,
	}).Error
	if err != nil {
		return fmt.Errorf("mark message %d failed: %w", msg.ID, err)
	}
	msg.DeliveryStatus = models.StatusFailed
	msg.ErrorMessage = reason
	return nil
}

// SetConversationStatus closes, archives or reopens a conversation. Reopening
// is refused while the contact already has another open conversation.
func (s *Service) SetConversationStatus(ctx context.Context, businessID, conversationID uint, status models.ConversationStatus) (*models.Conversation, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: conversation status %q", ErrInvalidMessage, status)
	}

	var conv models.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND business_profile_id = ?", conversationID, businessID).First(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConversationMissing
		}
		if err != nil {
			return err
		}
		if conv.Status == status {
			return nil
		}

		if status == models.ConversationOpen {
			var open int64
			err := tx.Model(&models.Conversation{}).
				Where("business_profile_id = ? AND contact_id = ? AND status = ? AND id <> ?", businessID, conv.ContactID, models.ConversationOpen, conv.ID).
				Count(&open).Error
			if err != nil {
				return err
			}
			if open > 0 {
				return ErrConversationOpen
			}
		}

		if err := tx.Model(&conv).Update("status", status).Error; err != nil {
			return fmt.Errorf("update conversation status: %w", err)
		}
		conv.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ConversationFilter narrows ListConversations.
type ConversationFilter struct {
	Status models.ConversationStatus
	Limit  int
	Offset int
}

// ListConversations returns a business's conversations, newest activity first.
func (s *Service) ListConversations(ctx context.Context, businessID uint, f ConversationFilter) ([]models.Conversation, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := s.db.WithContext(ctx).Preload("Contact").Where("business_profile_id = ?", businessID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	conversations := []models.Conversation{}
	err := q.Order("last_message_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&conversations).Error
	return conversations, err
}

// ListMessages returns the messages of one conversation in chronological order.
func (s *Service) ListMessages(ctx context.Context, businessID, conversationID uint) ([]models.Message, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND business_profile_id = ?", conversationID, businessID).Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrConversationMissing
	}

	messages := []models.Message{}
	err = s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Order("id ASC").Find(&messages).Error
	return messages, err
}

// GetConversation loads one conversation of a business with its contact.
func (s *Service) GetConversation(ctx context.Context, businessID, conversationID uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).Preload("Contact").
		Where("id = ? AND business_profile_id = ?", conversationID, businessID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationMissing
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
