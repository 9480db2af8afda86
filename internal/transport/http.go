package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ignite/blastcampaign/internal/domain"
	"github.com/ignite/blastcampaign/internal/pkg/httpretry"
)

// HTTPTransport sends messages through a generic REST messaging-platform
// API (send + contact-lookup endpoints), retrying transient failures via
// httpretry.RetryClient exactly as the teacher's outbound API clients do.
type HTTPTransport struct {
	client  *httpretry.RetryClient
	baseURL string
	apiKey  string
}

// NewHTTPTransport builds an HTTPTransport against baseURL, authenticating
// with apiKey. doer lets tests substitute a fake http.Client; nil uses the
// RetryClient's default.
func NewHTTPTransport(baseURL, apiKey string, doer httpretry.HTTPDoer) *HTTPTransport {
	return &HTTPTransport{
		client:  httpretry.NewRetryClient(doer, 3),
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type sendRequest struct {
	ChannelID string `json:"channel_id"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

// Send POSTs the message and classifies the response into the §7 error
// taxonomy: network/timeout and 5xx/429 map to TRANSIENT_NETWORK/
// RATE_LIMIT, 401/403 map to PERMISSION_REVOKED, 422 maps to
// RECIPIENT_INVALID, anything else unrecognized maps to UNKNOWN. headers
// (AntiDetectionEngine's current fingerprint) are attached verbatim so the
// platform sees a consistent device/locale signature per campaign.
func (t *HTTPTransport) Send(ctx context.Context, channelID, recipient, message string, headers map[string]string) SendResult {
	body, err := json.Marshal(sendRequest{ChannelID: channelID, Recipient: recipient, Message: message})
	if err != nil {
		return SendResult{ErrorKind: domain.ErrUnknown, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return SendResult{ErrorKind: domain.ErrUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return SendResult{ErrorKind: domain.ErrTransientNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out sendResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return SendResult{ErrorKind: domain.ErrUnknown, Err: fmt.Errorf("transport: decode response: %w", err)}
		}
		return SendResult{PlatformMessageID: out.MessageID}
	case resp.StatusCode == http.StatusTooManyRequests:
		return SendResult{ErrorKind: domain.ErrRateLimit, Err: fmt.Errorf("transport: rate limited (status %d)", resp.StatusCode)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return SendResult{ErrorKind: domain.ErrPermissionRevoked, Err: fmt.Errorf("transport: permission revoked (status %d)", resp.StatusCode)}
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusNotFound:
		return SendResult{ErrorKind: domain.ErrRecipientInvalid, Err: fmt.Errorf("transport: recipient invalid (status %d)", resp.StatusCode)}
	case resp.StatusCode >= 500:
		return SendResult{ErrorKind: domain.ErrTransientNetwork, Err: fmt.Errorf("transport: server error (status %d)", resp.StatusCode)}
	default:
		return SendResult{ErrorKind: domain.ErrUnknown, Err: fmt.Errorf("transport: unexpected status %d: %s", resp.StatusCode, string(respBody))}
	}
}

type lookupResponse struct {
	Exists bool   `json:"exists"`
	Handle string `json:"handle,omitempty"`
}

// ExistsOnPlatform GETs the contact-lookup endpoint for recipient.
func (t *HTTPTransport) ExistsOnPlatform(ctx context.Context, recipient string) (bool, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/v1/contacts/lookup?address="+recipient, nil)
	if err != nil {
		return false, "", err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return false, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, "", fmt.Errorf("transport: lookup failed (status %d)", resp.StatusCode)
	}

	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, "", fmt.Errorf("transport: decode lookup response: %w", err)
	}
	return out.Exists, out.Handle, nil
}
