package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.Config{GraphAPIURL: srv.URL})
}

var business = &models.BusinessProfile{ID: 1, BusinessNumber: "106540352242922", AccessToken: "secret-token"}

func TestSendRawMessage(t *testing.T) {
	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/106540352242922/messages", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{"messaging_product":"whatsapp","contacts":[{"input":"15550001","wa_id":"15550001"}],"messages":[{"id":"wamid.HBgL"}]}`))
	})

	resp, err := client.SendRawMessage(context.Background(), business, TextMessage("15550001", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "wamid.HBgL", resp.MessageID())

	assert.Equal(t, "whatsapp", got["messaging_product"])
	assert.Equal(t, "text", got["type"])
	assert.Equal(t, "hello", got["text"].(map[string]interface{})["body"])
}

func TestSendRawMessageAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid parameter"}}`))
	})

	_, err := client.SendRawMessage(context.Background(), business, TextMessage("15550001", "hello"))
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Invalid parameter")
}

func TestSendRawMessageRequiresCredentials(t *testing.T) {
	client := NewClient(&config.Config{GraphAPIURL: "http://unused"})
	_, err := client.SendRawMessage(context.Background(), &models.BusinessProfile{BusinessNumber: "1"}, TextMessage("2", "x"))
	assert.True(t, errors.Is(err, ErrMissingCredentials))
}

func TestMessageBuilders(t *testing.T) {
	tmpl := TemplateMessage("1", "order_update", "en_US", "Ana", "#42")
	require.NotNil(t, tmpl.Template)
	require.Len(t, tmpl.Template.Components, 1)
	assert.Equal(t, "body", tmpl.Template.Components[0].Type)
	assert.Equal(t, "#42", tmpl.Template.Components[0].Parameters[1].Text)
	assert.Empty(t, TemplateMessage("1", "hello_world", "en_US").Template.Components)

	doc := DocumentMessage("1", "https://cdn/x.pdf", "invoice.pdf", "")
	assert.Equal(t, "document", doc.Type)
	assert.Equal(t, "[document]:https://cdn/x.pdf:invoice.pdf", Summary(doc))

	product := ProductMessage("1", "cat-1", "sku-9", "Take a look")
	assert.Equal(t, "product", product.Interactive.Type)
	assert.Equal(t, "cat-1", product.Interactive.Action.CatalogID)
	assert.Equal(t, "[product]:sku-9", Summary(product))

	assert.Equal(t, "Template: order_update", Summary(tmpl))
	assert.Equal(t, "[image]:https://cdn/a.jpg:nice", Summary(ImageMessage("1", "https://cdn/a.jpg", "nice")))
	assert.Equal(t, "[video]:https://cdn/a.mp4", Summary(VideoMessage("1", "https://cdn/a.mp4", "")))
}

func TestUpsertProduct(t *testing.T) {
	var item CatalogItem
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cat-1/products", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&item))
		w.Write([]byte(`{"id":"prod-123"}`))
	})

	id, err := client.UpsertProduct(context.Background(), "cat-1", "tok", CatalogItem{RetailerID: "sku-1", Name: "Mug", Price: 1299, Currency: "USD", Availability: "in stock", Condition: "new"})
	require.NoError(t, err)
	assert.Equal(t, "prod-123", id)
	assert.Equal(t, int64(1299), item.Price)
	assert.Equal(t, "sku-1", item.RetailerID)

	_, err = client.UpsertProduct(context.Background(), "", "tok", CatalogItem{})
	assert.True(t, errors.Is(err, ErrNoCatalog))
}
