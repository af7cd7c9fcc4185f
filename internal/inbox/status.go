package inbox

import (
	"context"
	"fmt"

	"whatsapp-inbox/internal/models"

	"gorm.io/gorm"
)

type StatusOutcome string

const (
	StatusApplied  StatusOutcome = "applied"
	StatusIgnored  StatusOutcome = "ignored"
	StatusNotFound StatusOutcome = "not_found"
)

// StatusUpdate is the result of applying one delivery-status callback.
type StatusUpdate struct {
	Outcome  StatusOutcome
	Previous models.DeliveryStatus
	Message  *models.Message
}

// UpdateStatus moves the message identified by whatsappMessageID to status.
// Unknown ids are a no-op and regressions (READ then SENT) are ignored. Only
// delivery_status, and error_message for FAILED, are written.
func (s *Service) UpdateStatus(ctx context.Context, whatsappMessageID string, status models.DeliveryStatus, errorMessage string) (*StatusUpdate, error) {
	if whatsappMessageID == "" || !status.Valid() {
		return nil, fmt.Errorf("%w: status %q for message %q", ErrInvalidMessage, status, whatsappMessageID)
	}

	var out StatusUpdate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg, err := findByWhatsAppID(tx, whatsappMessageID)
		if err != nil {
			return err
		}
		if msg == nil {
			out.Outcome = StatusNotFound
			return nil
		}
		out.Previous = msg.DeliveryStatus
		out.Message = msg

		if !msg.DeliveryStatus.CanTransitionTo(status) {
			out.Outcome = StatusIgnored
			return nil
		}

		columns := map[string]interface{}{"delivery_status": status}
		if status == models.StatusFailed && errorMessage != "" {
			columns["error_message"] = errorMessage
		}
		if err := tx.Model(msg).UpdateColumns(columns).Error; err != nil {
			return fmt.Errorf("update delivery status: %w", err)
		}
		msg.DeliveryStatus = status
		if status == models.StatusFailed && errorMessage != "" {
			msg.ErrorMessage = errorMessage
		}
		out.Outcome = StatusApplied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
