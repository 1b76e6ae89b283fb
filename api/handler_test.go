package api

import (
	"encoding/json"
	"errors"
	"github.com/jellydator/ttlcache/v3"
	"github.com/qubic/go-crowdsensing/business/domain/campaign"
	"github.com/qubic/go-crowdsensing/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type FakeCheckpointProvider struct {
	sequences   map[string]uint64
	shouldError bool
}

func (f *FakeCheckpointProvider) GetLastPublishedSequence(campaignID string) (uint64, error) {
	sequence, ok := f.sequences[campaignID]
	if !ok {
		return 0, entities.ErrStoreEntityNotFound
	}
	return sequence, nil
}

func (f *FakeCheckpointProvider) GetLastPublishedSequenceForAllCampaigns() (map[string]uint64, error) {
	if f.shouldError {
		return nil, errors.New("store error")
	}
	sequences := make(map[string]uint64, len(f.sequences))
	for id, sequence := range f.sequences {
		sequences[id] = sequence
	}
	return sequences, nil
}

func newTestService(t *testing.T) *campaign.Service {
	service, err := campaign.New(campaign.Config{Owner: "owner", MinParticipants: 2, RewardAmount: 100, Fee: 10},
		campaign.WithID("campaign-1"))
	require.NoError(t, err)
	require.NoError(t, service.AddVerifier("owner", "verifier"))
	require.NoError(t, service.RequestEncryptionKey("user"))
	_, err = service.SubmitData("user", "ipfs://user", 10)
	require.NoError(t, err)
	return service
}

func newTestHandler(t *testing.T, provider CampaignProvider, checkpoints CheckpointProvider, ttl time.Duration) *Handler {
	cache := ttlcache.New[string, *CampaignResponse](
		ttlcache.WithTTL[string, *CampaignResponse](ttl),
		ttlcache.WithDisableTouchOnHit[string, *CampaignResponse](),
	)
	t.Cleanup(cache.Stop)
	return NewHandler(provider, checkpoints, cache, zap.NewNop().Sugar())
}

func get(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHandler_GetHealth(t *testing.T) {
	h := newTestHandler(t, newTestService(t), &FakeCheckpointProvider{}, time.Minute)

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
}

func TestHandler_GetCampaign(t *testing.T) {
	service := newTestService(t)
	checkpoints := &FakeCheckpointProvider{sequences: map[string]uint64{"campaign-1": 2}}
	h := newTestHandler(t, service, checkpoints, time.Minute)

	rec := get(t, h, "/v1/campaign")
	require.Equal(t, http.StatusOK, rec.Code)

	var response CampaignResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, CampaignResponse{
		ID:                    "campaign-1",
		Cycle:                 1,
		MinParticipants:       2,
		RewardAmount:          100,
		Fee:                   10,
		Balance:               10,
		Verifiers:             []string{"verifier"},
		LastSequence:          3,
		LastPublishedSequence: 2,
	}, response)
}

func TestHandler_GetCampaign_givenCached_thenServeCachedUntilExpired(t *testing.T) {
	service := newTestService(t)
	h := newTestHandler(t, service, &FakeCheckpointProvider{}, time.Hour)

	first := get(t, h, "/v1/campaign")
	require.Equal(t, http.StatusOK, first.Code)

	require.NoError(t, service.Deposit("owner", 500))

	second := get(t, h, "/v1/campaign")
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	h.campaignCache.DeleteAll()
	third := get(t, h, "/v1/campaign")
	var response CampaignResponse
	require.NoError(t, json.Unmarshal(third.Body.Bytes(), &response))
	assert.Equal(t, uint64(510), response.Balance)
	assert.Zero(t, response.LastPublishedSequence)
}

func TestHandler_GetParticipant(t *testing.T) {
	h := newTestHandler(t, newTestService(t), &FakeCheckpointProvider{}, time.Minute)

	rec := get(t, h, "/v1/participants/user")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"handle": "user",
		"hasKey": true,
		"dataLocation": "ipfs://user",
		"assignedVerifier": "verifier",
		"feePaid": 10,
		"submitted": true,
		"reviewed": false,
		"verified": false,
		"rewarded": false
	}`, rec.Body.String())

	rec = get(t, h, "/v1/participants/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_GetEvents(t *testing.T) {
	h := newTestHandler(t, newTestService(t), &FakeCheckpointProvider{}, time.Minute)

	rec := get(t, h, "/v1/events?after=1&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var response EventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Events, 1)
	assert.Equal(t, uint64(2), response.Events[0].Sequence)
	assert.Equal(t, entities.EventEncryptionKeyIssued, response.Events[0].Type)
	assert.Equal(t, uint64(3), response.LastSequence)

	rec = get(t, h, "/v1/events")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Len(t, response.Events, 3)

	rec = get(t, h, "/v1/events?after=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"events":[]`)
}

func TestHandler_GetEvents_givenInvalidParameters_thenBadRequest(t *testing.T) {
	h := newTestHandler(t, newTestService(t), &FakeCheckpointProvider{}, time.Minute)

	for _, target := range []string{"/v1/events?after=-1", "/v1/events?after=abc", "/v1/events?limit=0", "/v1/events?limit=x"} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHandler_GetCheckpoints(t *testing.T) {
	checkpoints := &FakeCheckpointProvider{sequences: map[string]uint64{"campaign-1": 2, "campaign-0": 17}}
	h := newTestHandler(t, newTestService(t), checkpoints, time.Minute)

	rec := get(t, h, "/v1/checkpoints")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"lastPublishedSequences":{"campaign-0":17,"campaign-1":2}}`, rec.Body.String())

	checkpoints.shouldError = true
	rec = get(t, h, "/v1/checkpoints")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
