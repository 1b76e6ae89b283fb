package api

import (
	"encoding/json"
	"errors"
	"github.com/jellydator/ttlcache/v3"
	pkgerrors "github.com/pkg/errors"
	"github.com/qubic/go-crowdsensing/business/domain/campaign"
	"github.com/qubic/go-crowdsensing/entities"
	"go.uber.org/zap"
	"net/http"
	"strconv"
	"sync"
)

const (
	campaignKey       = "campaign"
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

type CampaignProvider interface {
	Campaign() campaign.Snapshot
	Fee() uint64
	Balance() uint64
	Verifiers() []string
	LastSequence() uint64
	Participant(handle string) (campaign.Participant, bool)
	EventsSince(after uint64, limit int) []entities.Event
}

type CheckpointProvider interface {
	GetLastPublishedSequence(campaignID string) (uint64, error)
	GetLastPublishedSequenceForAllCampaigns() (map[string]uint64, error)
}

type HealthResponse struct {
	Status string `json:"status"`
}

type CampaignResponse struct {
	ID                    string   `json:"id"`
	Cycle                 uint32   `json:"cycle"`
	MinParticipants       int      `json:"minParticipants"`
	RewardAmount          uint64   `json:"rewardAmount"`
	CurrentParticipants   int      `json:"currentParticipants"`
	IsClosed              bool     `json:"isClosed"`
	Fee                   uint64   `json:"fee"`
	Balance               uint64   `json:"balance"`
	Verifiers             []string `json:"verifiers"`
	LastSequence          uint64   `json:"lastSequence"`
	LastPublishedSequence uint64   `json:"lastPublishedSequence"`
}

type ParticipantResponse struct {
	Handle           string `json:"handle"`
	HasKey           bool   `json:"hasKey"`
	DataLocation     string `json:"dataLocation,omitempty"`
	AssignedVerifier string `json:"assignedVerifier,omitempty"`
	FeePaid          uint64 `json:"feePaid"`
	Submitted        bool   `json:"submitted"`
	Reviewed         bool   `json:"reviewed"`
	Verified         bool   `json:"verified"`
	Rewarded         bool   `json:"rewarded"`
}

type CheckpointsResponse struct {
	LastPublishedSequences map[string]uint64 `json:"lastPublishedSequences"`
}

type EventsResponse struct {
	Events       []entities.Event `json:"events"`
	LastSequence uint64           `json:"lastSequence"`
}

type Handler struct {
	provider      CampaignProvider
	checkpoints   CheckpointProvider
	campaignCache *ttlcache.Cache[string, *CampaignResponse]
	campaignLock  sync.Mutex
	logger        *zap.SugaredLogger
}

func NewHandler(provider CampaignProvider, checkpoints CheckpointProvider, campaignCache *ttlcache.Cache[string, *CampaignResponse], logger *zap.SugaredLogger) *Handler {
	return &Handler{
		provider:      provider,
		checkpoints:   checkpoints,
		campaignCache: campaignCache,
		logger:        logger,
	}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.GetHealth)
	mux.HandleFunc("GET /v1/campaign", h.GetCampaign)
	mux.HandleFunc("GET /v1/participants/{handle}", h.GetParticipant)
	mux.HandleFunc("GET /v1/events", h.GetEvents)
	mux.HandleFunc("GET /v1/checkpoints", h.GetCheckpoints)
	return mux
}

func (h *Handler) GetHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, HealthResponse{
		Status: "UP",
	})
}

func (h *Handler) GetCampaign(w http.ResponseWriter, _ *http.Request) {
	response, err := h.campaign()
	if err != nil {
		h.logger.Errorw("error creating campaign response", "error", err)
		http.Error(w, "Error creating campaign response", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, response)
}

func (h *Handler) campaign() (*CampaignResponse, error) {
	h.campaignLock.Lock() // lock so that we do not get multiple threads inside the `if`
	defer h.campaignLock.Unlock()

	item := h.campaignCache.Get(campaignKey)
	if item != nil {
		return item.Value(), nil
	}

	response, err := h.createCampaignResponse()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "creating campaign")
	}
	h.campaignCache.Set(campaignKey, response, ttlcache.DefaultTTL)
	return response, nil
}

func (h *Handler) createCampaignResponse() (*CampaignResponse, error) {
	snapshot := h.provider.Campaign()

	published, err := h.checkpoints.GetLastPublishedSequence(snapshot.ID)
	if err != nil && !errors.Is(err, entities.ErrStoreEntityNotFound) {
		return nil, pkgerrors.Wrap(err, "getting last published sequence")
	}

	return &CampaignResponse{
		ID:                    snapshot.ID,
		Cycle:                 snapshot.Cycle,
		MinParticipants:       snapshot.MinParticipants,
		RewardAmount:          snapshot.RewardAmount,
		CurrentParticipants:   snapshot.CurrentParticipants,
		IsClosed:              snapshot.IsClosed,
		Fee:                   h.provider.Fee(),
		Balance:               h.provider.Balance(),
		Verifiers:             h.provider.Verifiers(),
		LastSequence:          h.provider.LastSequence(),
		LastPublishedSequence: published,
	}, nil
}

func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider.Participant(r.PathValue("handle"))
	if !ok {
		http.Error(w, "Participant not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, ParticipantResponse{
		Handle:           p.Handle,
		HasKey:           p.HasKey,
		DataLocation:     p.DataLocation,
		AssignedVerifier: p.AssignedVerifier,
		FeePaid:          p.FeePaid,
		Submitted:        p.Submitted,
		Reviewed:         p.Reviewed,
		Verified:         p.Verified,
		Rewarded:         p.Rewarded,
	})
}

func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if value := r.URL.Query().Get("after"); value != "" {
		parsed, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			http.Error(w, "Invalid after parameter", http.StatusBadRequest)
			return
		}
		after = parsed
	}

	limit := defaultEventLimit
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = min(parsed, maxEventLimit)
	}

	events := h.provider.EventsSince(after, limit)
	if events == nil {
		events = []entities.Event{}
	}
	h.writeJSON(w, EventsResponse{
		Events:       events,
		LastSequence: h.provider.LastSequence(),
	})
}

// GetCheckpoints lists the relay checkpoints of every campaign id the store
// has seen, including ids of earlier runs.
func (h *Handler) GetCheckpoints(w http.ResponseWriter, _ *http.Request) {
	sequences, err := h.checkpoints.GetLastPublishedSequenceForAllCampaigns()
	if err != nil {
		h.logger.Errorw("error getting checkpoints", "error", err)
		http.Error(w, "Error getting checkpoints", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, CheckpointsResponse{
		LastPublishedSequences: sequences,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Add("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Errorw("error encoding response", "error", err)
		http.Error(w, "Error encoding response", http.StatusInternalServerError)
		return
	}
}
