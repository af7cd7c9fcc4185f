// Package outbound sends business messages through the Cloud API and keeps the
// inbox history in step: every send is queued as a Message first and then
// marked sent (with its wamid) or failed.
package outbound

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"whatsapp-inbox/internal/inbox"
	"whatsapp-inbox/internal/metrics"
	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/whatsapp"
	"whatsapp-inbox/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrNoRecipients = errors.New("broadcast has no opted-in recipients")

type Dispatcher struct {
	db     *gorm.DB
	inbox  *inbox.Service
	client *whatsapp.Client
}

func NewDispatcher(db *gorm.DB, inboxService *inbox.Service, client *whatsapp.Client) *Dispatcher {
	return &Dispatcher{db: db, inbox: inboxService, client: client}
}

// Send records msg in the conversation history and hands it to the platform.
// The returned Message reflects the final delivery status even on error. An
// error means the platform did not accept the message.
func (d *Dispatcher) Send(ctx context.Context, business *models.BusinessProfile, msg whatsapp.GenericMessage) (*models.Message, error) {
	record, err := d.inbox.RecordOutbound(ctx, inbox.OutboundMessage{
		BusinessProfileID: business.ID,
		To:                msg.To,
		Type:              models.MessageTypeFromPlatform(msg.Type),
		Content:           whatsapp.Summary(msg),
	})
	if err != nil {
		return nil, err
	}

	resp, sendErr := d.client.SendRawMessage(ctx, business, msg)
	if sendErr != nil {
		metrics.OutboundMessages.WithLabelValues(msg.Type, "failed").Inc()
		logger.Warn("Outbound message failed",
			zap.Uint("business_id", business.ID),
			zap.String("to", msg.To),
			zap.Error(sendErr))
		if err := d.inbox.MarkFailed(context.WithoutCancel(ctx), record, sendErr); err != nil {
			logger.Error("Failed to record send failure", zap.Uint("message_id", record.ID), zap.Error(err))
		}
		return record, fmt.Errorf("send %s message to %s: %w", msg.Type, msg.To, sendErr)
	}

	metrics.OutboundMessages.WithLabelValues(msg.Type, "sent").Inc()

	// the platform accepted the message; bookkeeping errors must not turn it into a failure
	bookkeeping := context.WithoutCancel(ctx)
	wamid := resp.MessageID()
	if err := d.inbox.MarkSent(bookkeeping, record, wamid); err != nil {
		logger.Error("Failed to record sent message",
			zap.Uint("message_id", record.ID),
			zap.String("whatsapp_message_id", wamid),
			zap.Error(err))
		if wamid != "" {
			if err := d.inbox.MarkSent(bookkeeping, record, ""); err != nil {
				logger.Error("Failed to record sent status", zap.Uint("message_id", record.ID), zap.Error(err))
			}
		}
	}
	return record, nil
}

func (d *Dispatcher) SendText(ctx context.Context, business *models.BusinessProfile, to, body string) (*models.Message, error) {
	return d.Send(ctx, business, whatsapp.TextMessage(to, body))
}

// BroadcastRequest sends one template to many contacts. With no explicit
// recipients every opted-in contact (optionally with Tag) is targeted.
type BroadcastRequest struct {
	TemplateName string
	Language     string
	Recipients   []string
	Tag          string
}

func (d *Dispatcher) Broadcast(ctx context.Context, business *models.BusinessProfile, req BroadcastRequest) (*models.Broadcast, error) {
	if req.TemplateName == "" {
		return nil, fmt.Errorf("template name is required")
	}
	if req.Language == "" {
		req.Language = "en_US"
	}

	recipients, err := d.recipients(ctx, business.ID, req)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	b := &models.Broadcast{
		BusinessProfileID: business.ID,
		TemplateName:      req.TemplateName,
		Language:          req.Language,
		Total:             len(recipients),
		Status:            "running",
	}
	if err := d.db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, fmt.Errorf("create broadcast: %w", err)
	}

	for _, to := range recipients {
		if ctx.Err() != nil {
			break
		}
		if _, err := d.Send(ctx, business, whatsapp.TemplateMessage(to, req.TemplateName, req.Language)); err != nil {
			b.Failed++
			continue
		}
		b.Sent++
	}

	b.Status = "completed"
	if ctx.Err() != nil {
		b.Status = "cancelled"
	}
	err = d.db.WithContext(context.WithoutCancel(ctx)).Model(b).Updates(map[string]interface{}{
		"sent":   b.Sent,
		"failed": b.Failed,
		"status": b.Status,
	}).Error
	if err != nil {
		return b, fmt.Errorf("update broadcast %d: %w", b.ID, err)
	}

	logger.Info("Broadcast processed",
		zap.Uint("business_id", business.ID),
		zap.String("template", req.TemplateName),
		zap.Int("sent", b.Sent),
		zap.Int("total", b.Total))
	return b, nil
}

func (d *Dispatcher) recipients(ctx context.Context, businessID uint, req BroadcastRequest) ([]string, error) {
	q := d.db.WithContext(ctx).Model(&models.Contact{}).Where("business_profile_id = ?", businessID)

	if len(req.Recipients) == 0 {
		q = q.Where("whatsapp_opt_in = ?", true)
		if req.Tag != "" {
			q = q.Where("tags LIKE ?", "%\""+strings.ReplaceAll(req.Tag, "\"", "")+"\"%")
		}
		var phones []string
		if err := q.Order("id ASC").Pluck("phone_number", &phones).Error; err != nil {
			return nil, fmt.Errorf("load broadcast recipients: %w", err)
		}
		return phones, nil
	}

	// explicit lists skip contacts that opted out
	var optedOut []string
	err := q.Where("whatsapp_opt_in = ? AND phone_number IN ?", false, req.Recipients).
		Pluck("phone_number", &optedOut).Error
	if err != nil {
		return nil, fmt.Errorf("load opted-out contacts: %w", err)
	}
	skip := make(map[string]bool, len(optedOut))
	for _, p := range optedOut {
		skip[p] = true
	}

	seen := make(map[string]bool, len(req.Recipients))
	out := make([]string, 0, len(req.Recipients))
	for _, p := range req.Recipients {
		p = strings.TrimSpace(p)
		if p == "" || skip[p] || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}
