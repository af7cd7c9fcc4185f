package quickreply

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	OpEquals     = "equals"
	OpContains   = "contains"
	OpStartsWith = "starts_with"
	OpRegex      = "regex"
)

// Sender delivers a text reply on behalf of a business.
type Sender interface {
	SendText(ctx context.Context, business *models.BusinessProfile, to, body string) (*models.Message, error)
}

type Engine struct {
	db     *gorm.DB
	sender Sender
}

func NewEngine(db *gorm.DB, sender Sender) *Engine {
	return &Engine{db: db, sender: sender}
}

// ProcessIncomingMessage answers an inbound text with the highest-priority
// matching auto-reply of the business. It reports the quick reply used, or nil.
func (e *Engine) ProcessIncomingMessage(ctx context.Context, business *models.BusinessProfile, contact *models.Contact, content string) (*models.QuickReply, error) {
	var replies []models.QuickReply
	err := e.db.WithContext(ctx).
		Where("business_profile_id = ? AND auto_reply = ?", business.ID, true).
		Order("priority DESC, id ASC").
		Find(&replies).Error
	if err != nil {
		return nil, fmt.Errorf("load quick replies: %w", err)
	}

	for i := range replies {
		qr := &replies[i]
		if !Match(content, qr.MatchOperator, qr.Keyword) {
			continue
		}

		logger.Debug("Quick reply matched",
			zap.Uint("business_id", business.ID),
			zap.String("shortcut", qr.Shortcut),
			zap.String("from", contact.PhoneNumber))

		if _, err := e.sender.SendText(ctx, business, contact.PhoneNumber, Render(qr.Body, contact, content)); err != nil {
			return qr, err
		}
		// first match wins
		return qr, nil
	}
	return nil, nil
}

// Match checks if message matches keyword under operator
func Match(message, operator, value string) bool {
	if value == "" {
		return false
	}
	message = strings.ToLower(strings.TrimSpace(message))
	value = strings.ToLower(strings.TrimSpace(value))

	switch operator {
	case OpEquals, "":
		return message == value
	case OpContains:
		return strings.Contains(message, value)
	case OpStartsWith:
		return strings.HasPrefix(message, value)
	case OpRegex:
		matched, err := regexp.MatchString(value, message)
		if err != nil {
			logger.Warn("Invalid quick reply regex", zap.String("pattern", value), zap.Error(err))
			return false
		}
		return matched
	default:
		return false
	}
}

// ValidOperator reports whether op is a known match operator.
func ValidOperator(op string) bool {
	switch op {
	case "", OpEquals, OpContains, OpStartsWith, OpRegex:
		return true
	}
	return false
}

// Render replaces {{contact_name}} and {{message}} placeholders.
func Render(body string, contact *models.Contact, message string) string {
	name := contact.Name
	if name == "" {
		name = contact.PhoneNumber
	}
	body = strings.ReplaceAll(body, "{{contact_name}}", name)
	return strings.ReplaceAll(body, "{{message}}", message)
}
