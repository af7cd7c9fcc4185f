package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var ErrNoCatalog = errors.New("business has no catalog configured")

// CatalogItem is the product payload accepted by POST /{catalog-id}/products.
// Price is in the currency's minor unit.
type CatalogItem struct {
	RetailerID   string `json:"retailer_id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Price        int64  `json:"price"`
	Currency     string `json:"currency"`
	Availability string `json:"availability"`
	Condition    string `json:"condition"`
	ImageURL     string `json:"image_url,omitempty"`
	URL          string `json:"url,omitempty"`
	Brand        string `json:"brand,omitempty"`
}

// UpsertProduct creates or updates a catalog item and returns its platform id.
func (c *Client) UpsertProduct(ctx context.Context, catalogID, token string, item CatalogItem) (string, error) {
	if catalogID == "" {
		return "", ErrNoCatalog
	}
	if token == "" {
		return "", ErrMissingCredentials
	}

	url := fmt.Sprintf("%s/%s/products", c.baseURL, catalogID)
	resp, err := c.sendRequest(ctx, http.MethodPost, url, token, item)
	if err != nil {
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return "", fmt.Errorf("decode catalog response: %w", err)
	}
	return out.ID, nil
}
