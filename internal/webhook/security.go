package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const SignatureHeader = "X-Hub-Signature-256"

var (
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrUnreadableBody    = errors.New("failed to read request body")
)

// verifySignature reads the request body and checks it against the
// sha256=<hex> HMAC header. An empty secret disables the check.
func verifySignature(r *http.Request, secret string) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableBody, err)
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body))

	if secret == "" {
		return body, nil
	}

	header := r.Header.Get(SignatureHeader)
	if header == "" {
		return nil, fmt.Errorf("missing signature header: %s", SignatureHeader)
	}
	parts := strings.SplitN(header, "=", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "sha256" {
		return nil, fmt.Errorf("invalid signature format in header %s", SignatureHeader)
	}

	if !hmac.Equal([]byte(Sign(body, secret)), []byte(strings.ToLower(parts[1]))) {
		return nil, ErrSignatureMismatch
	}
	return body, nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
