package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/blastcampaign/internal/adaptive"
	"github.com/ignite/blastcampaign/internal/antidetect"
	"github.com/ignite/blastcampaign/internal/domain"
	"github.com/ignite/blastcampaign/internal/emitter"
	"github.com/ignite/blastcampaign/internal/health"
	"github.com/ignite/blastcampaign/internal/pkg/clock"
	"github.com/ignite/blastcampaign/internal/queue"
	"github.com/ignite/blastcampaign/internal/runner"
	"github.com/ignite/blastcampaign/internal/transport"
	"github.com/ignite/blastcampaign/internal/validation"
)

type fakeRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.Campaign
}

func newFakeRepo() *fakeRepo { return &fakeRepo{byID: make(map[string]*domain.Campaign)} }

func (r *fakeRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) Save(ctx context.Context, c *domain.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.byID[c.CampaignID] = &cp
	return nil
}

type fakeTransport struct{}

func (fakeTransport) Send(ctx context.Context, channelID, recipient, message string, headers map[string]string) transport.SendResult {
	return transport.SendResult{PlatformMessageID: "ok"}
}

func (fakeTransport) ExistsOnPlatform(ctx context.Context, recipient string) (bool, string, error) {
	return true, "handle", nil
}

func newTestHandlers() *Handlers {
	clk := clock.NewReal()
	deps := runner.Deps{
		Repo:       newFakeRepo(),
		Queue:      queue.NewMemoryStore(),
		Validation: validation.NewCache(validation.Config{}, nil, nil),
		Transport:  fakeTransport{},
		AntiDetect: antidetect.NewEngine(),
		Adaptive:   adaptive.NewController(nil),
		Health:     health.NewMonitor(nil),
		Emitter:    emitter.New(),
		Clock:      clk,
	}
	return &Handlers{Deps: deps, Registry: runner.NewRegistry(), SeedFn: func() int64 { return 1 }}
}

func TestCreateCampaignRejectsMissingRecipients(t *testing.T) {
	h := newTestHandlers()
	body, _ := json.Marshal(createCampaignRequest{TenantID: "t1", ChannelID: "c1", MessageTemplate: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/campaigns", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.CreateCampaign(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION", resp.Code)
}

func TestCreateThenGetCampaignRoundTrips(t *testing.T) {
	h := newTestHandlers()
	reqBody := createCampaignRequest{
		TenantID: "t1", ChannelID: "c1", CampaignName: "blast",
		MessageTemplate: "hello",
		Recipients:      []recipientInput{{Address: "+15550001"}, {Address: "+15550002"}},
		Config:          domain.Config{AccountAge: domain.AgeEstablished},
	}
	body, _ := json.Marshal(reqBody)
	createReq := httptest.NewRequest(http.MethodPost, "/campaigns", bytes.NewReader(body))
	createW := httptest.NewRecorder()
	h.CreateCampaign(createW, createReq)
	require.Equal(t, http.StatusCreated, createW.Code)

	var created createCampaignResponse
	require.NoError(t, json.Unmarshal(createW.Body.Bytes(), &created))
	require.NotEmpty(t, created.CampaignID)

	router := SetupRoutes(h)
	getReq := httptest.NewRequest(http.MethodGet, "/campaigns/"+created.CampaignID, nil)
	getW := httptest.NewRecorder()
	router.ServeHTTP(getW, getReq)

	assert.Equal(t, http.StatusOK, getW.Code)
	var got campaignWithProgress
	require.NoError(t, json.Unmarshal(getW.Body.Bytes(), &got))
	assert.Equal(t, domain.StatusScheduled, got.Status)
	assert.Equal(t, 2, got.Total)
}

func TestGetCampaignNotFound(t *testing.T) {
	h := newTestHandlers()
	router := SetupRoutes(h)
	req := httptest.NewRequest(http.MethodGet, "/campaigns/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
