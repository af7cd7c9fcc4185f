package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/database/dbtest"
	"whatsapp-inbox/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPhoneNumberID = "106540352242922"

func setupService(t *testing.T) (*Service, *gorm.DB, *models.BusinessProfile) {
	t.Helper()
	db := dbtest.New(t)

	business := &models.BusinessProfile{Name: "Acme Store", BusinessNumber: testPhoneNumberID, AccessToken: "token"}
	require.NoError(t, db.Create(business).Error)

	svc := NewService(db)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, db, business
}

func count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func inbound(from, wamid, content string) InboundMessage {
	return InboundMessage{
		PhoneNumberID:     testPhoneNumberID,
		From:              from,
		WhatsAppMessageID: wamid,
		Type:              models.MessageText,
		Content:           content,
	}
}

func TestRecordInboundUnknownBusiness(t *testing.T) {
	svc, db, _ := setupService(t)

	in := inbound("15550001", "wamid.1", "hello")
	in.PhoneNumberID = "999"
	_, err := svc.RecordInbound(context.Background(), in)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownBusiness))
	assert.Zero(t, count(t, db, &models.Contact{}))
	assert.Zero(t, count(t, db, &models.Conversation{}))
	assert.Zero(t, count(t, db, &models.Message{}))
}

func TestRecordInboundFirstTimeSender(t *testing.T) {
	svc, db, business := setupService(t)

	res, err := svc.RecordInbound(context.Background(), inbound("15550001", "wamid.1", "hello there"))
	require.NoError(t, err)

	assert.True(t, res.NewContact)
	assert.True(t, res.NewConversation)
	assert.False(t, res.Duplicate)
	assert.Equal(t, int64(1), count(t, db, &models.Contact{}))
	assert.Equal(t, int64(1), count(t, db, &models.Conversation{}))
	assert.Equal(t, int64(1), count(t, db, &models.Message{}))

	var contact models.Contact
	require.NoError(t, db.First(&contact).Error)
	assert.Equal(t, business.ID, contact.BusinessProfileID)
	assert.Equal(t, "15550001", contact.PhoneNumber)
	assert.True(t, contact.WhatsAppOptIn)

	var conv models.Conversation
	require.NoError(t, db.First(&conv).Error)
	assert.Equal(t, models.ConversationOpen, conv.Status)
	assert.Equal(t, models.ChannelWhatsApp, conv.Channel)
	assert.Equal(t, "hello there", conv.LastMessagePreview)
	assert.Equal(t, contact.ID, conv.ContactID)

	var msg models.Message
	require.NoError(t, db.First(&msg).Error)
	assert.Equal(t, models.DirectionInbound, msg.Direction)
	assert.Equal(t, models.MessageText, msg.Type)
	assert.Equal(t, models.StatusSent, msg.DeliveryStatus)
	assert.Equal(t, conv.ID, msg.ConversationID)
	assert.Equal(t, contact.ID, msg.ContactID)
	require.NotNil(t, msg.WhatsAppMessageID)
	assert.Equal(t, "wamid.1", *msg.WhatsAppMessageID)
}

func TestRecordInboundReusesOpenConversation(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.RecordInbound(ctx, inbound("15550001", "wamid.1", "first"))
	require.NoError(t, err)
	second, err := svc.RecordInbound(ctx, inbound("15550001", "wamid.2", "second"))
	require.NoError(t, err)

	assert.False(t, second.NewContact)
	assert.False(t, second.NewConversation)
	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)
	assert.Equal(t, int64(1), count(t, db, &models.Contact{}))
	assert.Equal(t, int64(1), count(t, db, &models.Conversation{}))
	assert.Equal(t, int64(2), count(t, db, &models.Message{}))

	var conv models.Conversation
	require.NoError(t, db.First(&conv, first.Conversation.ID).Error)
	assert.Equal(t, "second", conv.LastMessagePreview)
	assert.True(t, conv.LastMessageAt.After(first.Conversation.LastMessageAt))
	assert.True(t, conv.LastMessageAt.Equal(second.Conversation.LastMessageAt))
}

func TestRecordInboundOpensNewConversationAfterClose(t *testing.T) {
	svc, db, business := setupService(t)
	ctx := context.Background()

	first, err := svc.RecordInbound(ctx, inbound("15550001", "wamid.1", "first"))
	require.NoError(t, err)
	_, err = svc.SetConversationStatus(ctx, business.ID, first.Conversation.ID, models.ConversationClosed)
	require.NoError(t, err)

	second, err := svc.RecordInbound(ctx, inbound("15550001", "wamid.2", "again"))
	require.NoError(t, err)

	assert.False(t, second.NewContact)
	assert.True(t, second.NewConversation)
	assert.NotEqual(t, first.Conversation.ID, second.Conversation.ID)
	assert.Equal(t, int64(2), count(t, db, &models.Conversation{}))
}

func TestRecordInboundConcurrentSenderSharesConversation(t *testing.T) {
	svc, db, business := setupService(t)
	svc.now = time.Now
	ctx := context.Background()

	first, err := svc.RecordInbound(ctx, inbound("15550001", "wamid.0", "first"))
	require.NoError(t, err)
	_, err = svc.SetConversationStatus(ctx, business.ID, first.Conversation.ID, models.ConversationClosed)
	require.NoError(t, err)

	const senders = 8
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := 1; i <= senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.RecordInbound(ctx, inbound("15550001", fmt.Sprintf("wamid.%d", i), "again"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var open int64
	require.NoError(t, db.Model(&models.Conversation{}).
		Where("contact_id = ? AND status = ?", first.Contact.ID, models.ConversationOpen).
		Count(&open).Error)
	assert.Equal(t, int64(1), open)
	assert.Equal(t, int64(1), count(t, db, &models.Contact{}))
	assert.Equal(t, int64(2), count(t, db, &models.Conversation{}))
	assert.Equal(t, int64(senders+1), count(t, db, &models.Message{}))
}

func TestRecordInboundConcurrentFirstContact(t *testing.T) {
	svc, db, _ := setupService(t)
	svc.now = time.Now
	ctx := context.Background()

	const senders = 6
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.RecordInbound(ctx, inbound("15550002", fmt.Sprintf("wamid.new.%d", i), "hi"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), count(t, db, &models.Contact{}))
	assert.Equal(t, int64(1), count(t, db, &models.Conversation{}))
	assert.Equal(t, int64(senders), count(t, db, &models.Message{}))
}

func TestRecordInboundTruncatesPreview(t *testing.T) {
	svc, db, _ := setupService(t)

	long := strings.Repeat("é", 150)
	_, err := svc.RecordInbound(context.Background(), inbound("15550001", "wamid.1", long))
	require.NoError(t, err)

	var conv models.Conversation
	require.NoError(t, db.First(&conv).Error)
	assert.Equal(t, PreviewLength, len([]rune(conv.LastMessagePreview)))

	var msg models.Message
	require.NoError(t, db.First(&msg).Error)
	assert.Equal(t, long, msg.Content)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))
	assert.Equal(t, strings.Repeat("a", 120), Preview(strings.Repeat("a", 121)))
	assert.Equal(t, "", Preview(""))
}

func TestRecordInboundDuplicateDelivery(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.RecordInbound(ctx, inbound("15550001", "wamid.1", "hello"))
	require.NoError(t, err)

	again, err := svc.RecordInbound(ctx, inbound("15550001", "wamid.1", "hello (redelivered)"))
	require.NoError(t, err)

	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Message.ID, again.Message.ID)
	assert.Equal(t, int64(1), count(t, db, &models.Message{}))

	var conv models.Conversation
	require.NoError(t, db.First(&conv).Error)
	assert.Equal(t, "hello", conv.LastMessagePreview)
}

func TestRecordInboundWithoutMessageID(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.RecordInbound(ctx, inbound("15550001", "", "a"))
	require.NoError(t, err)
	_, err = svc.RecordInbound(ctx, inbound("15550001", "", "b"))
	require.NoError(t, err)

	assert.Equal(t, int64(2), count(t, db, &models.Message{}))
}

func TestRecordInboundFillsProfileName(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.RecordInbound(ctx, inbound("15550001", "wamid.1", "a"))
	require.NoError(t, err)

	in := inbound("15550001", "wamid.2", "b")
	in.ProfileName = "Ana"
	res, err := svc.RecordInbound(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Ana", res.Contact.Name)

	in = inbound("15550001", "wamid.3", "c")
	in.ProfileName = "Someone Else"
	_, err = svc.RecordInbound(ctx, in)
	require.NoError(t, err)

	var contact models.Contact
	require.NoError(t, db.First(&contact).Error)
	assert.Equal(t, "Ana", contact.Name)
}

func TestRecordInboundScopesContactsPerBusiness(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()

	other := &models.BusinessProfile{Name: "Other", BusinessNumber: "222"}
	require.NoError(t, db.Create(other).Error)

	_, err := svc.RecordInbound(ctx, inbound("15550001", "wamid.1", "a"))
	require.NoError(t, err)
	in := inbound("15550001", "wamid.2", "b")
	in.PhoneNumberID = "222"
	res, err := svc.RecordInbound(ctx, in)
	require.NoError(t, err)

	assert.True(t, res.NewContact)
	assert.Equal(t, other.ID, res.Contact.BusinessProfileID)
	assert.Equal(t, int64(2), count(t, db, &models.Contact{}))
}

func TestRecordInboundValidation(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.RecordInbound(context.Background(), InboundMessage{PhoneNumberID: testPhoneNumberID})
	assert.True(t, errors.Is(err, ErrInvalidMessage))
}

func TestRecordInboundDatabaseFailure(t *testing.T) {
	svc, db, _ := setupService(t)
	require.NoError(t, database.Close(db))

	_, err := svc.RecordInbound(context.Background(), inbound("15550001", "wamid.1", "hello"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnknownBusiness))
}

func TestResolveBusiness(t *testing.T) {
	svc, _, business := setupService(t)

	got, err := svc.ResolveBusiness(context.Background(), testPhoneNumberID)
	require.NoError(t, err)
	assert.Equal(t, business.ID, got.ID)

	_, err = svc.ResolveBusiness(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrUnknownBusiness))
}
