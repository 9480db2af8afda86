// Package transport implements the ChatTransport capability (§4.7 step
// 9-10, §7): sending one rendered message to one recipient over a
// messaging platform's API, classifying any failure into the closed
// ErrorKind taxonomy CampaignRunner's retry logic depends on. Grounded on
// the teacher's internal/pkg/httpretry.RetryClient for transient-error
// handling, reused as-is for backoff/jitter.
package transport

import (
	"context"

	"github.com/ignite/blastcampaign/internal/domain"
)

// SendResult is the outcome of one ChatTransport.Send call, mapped by
// CampaignRunner into a domain.Outcome.
type SendResult struct {
	PlatformMessageID string
	ErrorKind         domain.ErrorKind
	Err               error
}

// Transport is the capability CampaignRunner depends on to deliver one
// message. A real implementation wraps a platform API client; tests
// substitute a stub that returns scripted SendResults.
type Transport interface {
	// Send delivers message to recipient on behalf of channelID, attaching
	// headers (AntiDetectionEngine's HeadersFor — User-Agent, device/locale
	// headers for the current fingerprint), and returns a SendResult whose
	// ErrorKind is the zero value when Err is nil.
	Send(ctx context.Context, channelID, recipient, message string, headers map[string]string) SendResult
	// ExistsOnPlatform checks whether recipient resolves to a real
	// account, satisfying validation.Transport for the validation cache
	// (§4.5).
	ExistsOnPlatform(ctx context.Context, recipient string) (bool, string, error)
}
