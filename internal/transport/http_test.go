package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/blastcampaign/internal/domain"
)

func TestSendSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message_id":"msg-1"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "key", srv.Client())
	res := tr.Send(context.Background(), "chan-1", "+1555", "hi", nil)
	require.NoError(t, res.Err)
	assert.Equal(t, "msg-1", res.PlatformMessageID)
}

func TestSendAttachesHeaders(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message_id":"msg-1"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "key", srv.Client())
	res := tr.Send(context.Background(), "chan-1", "+1555", "hi", map[string]string{"User-Agent": "test-agent/1.0"})
	require.NoError(t, res.Err)
	assert.Equal(t, "test-agent/1.0", gotUA)
}

func TestSendRateLimitClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "key", srv.Client())
	res := tr.Send(context.Background(), "chan-1", "+1555", "hi", nil)
	require.Error(t, res.Err)
	assert.Equal(t, domain.ErrRateLimit, res.ErrorKind)
	assert.True(t, res.ErrorKind.Retryable())
}

func TestSendPermissionRevokedClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "key", srv.Client())
	res := tr.Send(context.Background(), "chan-1", "+1555", "hi", nil)
	assert.Equal(t, domain.ErrPermissionRevoked, res.ErrorKind)
	assert.False(t, res.ErrorKind.Retryable())
}

func TestSendRecipientInvalidClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "key", srv.Client())
	res := tr.Send(context.Background(), "chan-1", "+1555", "hi", nil)
	assert.Equal(t, domain.ErrRecipientInvalid, res.ErrorKind)
}

func TestExistsOnPlatform(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"exists":true,"handle":"@user"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "key", srv.Client())
	exists, handle, err := tr.ExistsOnPlatform(context.Background(), "+1555")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "@user", handle)
}
