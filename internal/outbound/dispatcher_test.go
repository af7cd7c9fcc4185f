package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/database/dbtest"
	"whatsapp-inbox/internal/inbox"
	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/internal/whatsapp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGraph struct {
	mu     sync.Mutex
	sent   []whatsapp.GenericMessage
	failTo map[string]bool
}

func (f *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg whatsapp.GenericMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[msg.To] {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"recipient not on WhatsApp"}}`))
		return
	}
	f.sent = append(f.sent, msg)
	fmt.Fprintf(w, `{"messaging_product":"whatsapp","messages":[{"id":"wamid.%d"}]}`, len(f.sent))
}

func setup(t *testing.T) (*Dispatcher, *gorm.DB, *models.BusinessProfile, *fakeGraph) {
	t.Helper()
	db := dbtest.New(t)
	business := &models.BusinessProfile{Name: "Acme", BusinessNumber: "1065", AccessToken: "tok"}
	require.NoError(t, db.Create(business).Error)

	graph := &fakeGraph{failTo: map[string]bool{}}
	srv := httptest.NewServer(graph)
	t.Cleanup(srv.Close)

	client := whatsapp.NewClient(&config.Config{GraphAPIURL: srv.URL})
	return NewDispatcher(db, inbox.NewService(db), client), db, business, graph
}

func TestSendRecordsSentMessage(t *testing.T) {
	d, db, business, graph := setup(t)

	msg, err := d.SendText(context.Background(), business, "15550001", "hi there")
	require.NoError(t, err)

	require.Len(t, graph.sent, 1)
	assert.Equal(t, "15550001", graph.sent[0].To)

	var stored models.Message
	require.NoError(t, db.First(&stored, msg.ID).Error)
	assert.Equal(t, models.DirectionOutbound, stored.Direction)
	assert.Equal(t, models.StatusSent, stored.DeliveryStatus)
	require.NotNil(t, stored.WhatsAppMessageID)
	assert.Equal(t, "wamid.1", *stored.WhatsAppMessageID)
	assert.Equal(t, "hi there", stored.Content)
}

func TestSendRecordsFailure(t *testing.T) {
	d, db, business, graph := setup(t)
	graph.failTo["15550009"] = true

	msg, err := d.SendText(context.Background(), business, "15550009", "hi")
	require.Error(t, err)
	var apiErr *whatsapp.APIError
	assert.True(t, errors.As(err, &apiErr))

	var stored models.Message
	require.NoError(t, db.First(&stored, msg.ID).Error)
	assert.Equal(t, models.StatusFailed, stored.DeliveryStatus)
	assert.Contains(t, stored.ErrorMessage, "recipient not on WhatsApp")
	assert.Nil(t, stored.WhatsAppMessageID)
}

func TestBroadcastToOptedInContacts(t *testing.T) {
	d, db, business, graph := setup(t)
	require.NoError(t, db.Create(&[]models.Contact{
		{BusinessProfileID: business.ID, PhoneNumber: "1", WhatsAppOptIn: true, Tags: `["vip"]`},
		{BusinessProfileID: business.ID, PhoneNumber: "2", WhatsAppOptIn: false, Tags: `["vip"]`},
		{BusinessProfileID: business.ID, PhoneNumber: "3", WhatsAppOptIn: true, Tags: `[]`},
	}).Error)
	graph.failTo["3"] = true

	b, err := d.Broadcast(context.Background(), business, BroadcastRequest{TemplateName: "spring_sale"})
	require.NoError(t, err)

	assert.Equal(t, 2, b.Total)
	assert.Equal(t, 1, b.Sent)
	assert.Equal(t, 1, b.Failed)
	assert.Equal(t, "completed", b.Status)
	assert.Equal(t, "en_US", b.Language)
	require.Len(t, graph.sent, 1)
	assert.Equal(t, "spring_sale", graph.sent[0].Template.Name)

	var stored models.Broadcast
	require.NoError(t, db.First(&stored, b.ID).Error)
	assert.Equal(t, 1, stored.Sent)
	assert.Equal(t, "completed", stored.Status)
}

func TestBroadcastByTag(t *testing.T) {
	d, db, business, graph := setup(t)
	require.NoError(t, db.Create(&[]models.Contact{
		{BusinessProfileID: business.ID, PhoneNumber: "1", WhatsAppOptIn: true, Tags: `["vip"]`},
		{BusinessProfileID: business.ID, PhoneNumber: "3", WhatsAppOptIn: true, Tags: `["lead"]`},
	}).Error)

	b, err := d.Broadcast(context.Background(), business, BroadcastRequest{TemplateName: "t", Tag: "vip"})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Total)
	require.Len(t, graph.sent, 1)
	assert.Equal(t, "1", graph.sent[0].To)
}

func TestBroadcastExplicitRecipientsSkipOptOut(t *testing.T) {
	d, db, business, graph := setup(t)
	require.NoError(t, db.Create(&models.Contact{BusinessProfileID: business.ID, PhoneNumber: "2", WhatsAppOptIn: false}).Error)

	b, err := d.Broadcast(context.Background(), business, BroadcastRequest{
		TemplateName: "t",
		Language:     "pt_BR",
		Recipients:   []string{"1", "2", "1", " "},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Total)
	require.Len(t, graph.sent, 1)
	assert.Equal(t, "pt_BR", graph.sent[0].Template.Language.Code)
}

func TestBroadcastWithoutRecipients(t *testing.T) {
	d, _, business, _ := setup(t)

	_, err := d.Broadcast(context.Background(), business, BroadcastRequest{TemplateName: "t"})
	assert.True(t, errors.Is(err, ErrNoRecipients))

	_, err = d.Broadcast(context.Background(), business, BroadcastRequest{})
	assert.Error(t, err)
}

func TestSendCountsAcceptedMessageWhenBookkeepingFails(t *testing.T) {
	d, db, business, graph := setup(t)

	// an inbound row already owns the id the platform will hand out
	_, err := inbox.NewService(db).RecordInbound(context.Background(), inbox.InboundMessage{
		PhoneNumberID:     business.BusinessNumber,
		From:              "15550001",
		WhatsAppMessageID: "wamid.1",
		Content:           "hello",
	})
	require.NoError(t, err)

	b, err := d.Broadcast(context.Background(), business, BroadcastRequest{TemplateName: "promo"})
	require.NoError(t, err)
	require.Len(t, graph.sent, 1)
	assert.Equal(t, 1, b.Sent)
	assert.Equal(t, 0, b.Failed)

	var out models.Message
	require.NoError(t, db.Where("direction = ?", models.DirectionOutbound).First(&out).Error)
	assert.Equal(t, models.StatusSent, out.DeliveryStatus)
	assert.Nil(t, out.WhatsAppMessageID)
}
