package posting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrCaptchaFailed indicates the token was rejected by the verifier.
var ErrCaptchaFailed = errors.New("posting: captcha verification failed")

// Verifier checks a captcha token for a client address. Implementations
// must honor the context deadline; a verifier outage rejects the
// submission, it never admits it.
type Verifier interface {
	Verify(ctx context.Context, token string, ip string) error
}

// HTTPVerifier verifies tokens against a captcha service endpoint.
type HTTPVerifier struct {
	endpoint string
	secret   string
	client   *http.Client
}

// NewHTTPVerifier constructs an HTTPVerifier with a bounded per-call timeout.
func NewHTTPVerifier(endpoint, secret string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPVerifier{endpoint: endpoint, secret: secret, client: &http.Client{Timeout: timeout}}
}

var _ Verifier = (*HTTPVerifier)(nil)

// Verify implements Verifier.
func (v *HTTPVerifier) Verify(ctx context.Context, token string, ip string) error {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	form.Set("remoteip", ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("captcha service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("captcha service: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("captcha service: %w", err)
	}
	if !payload.Success {
		return ErrCaptchaFailed
	}
	return nil
}
