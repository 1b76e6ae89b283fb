package kafka

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"github.com/google/go-cmp/cmp"
	"github.com/qubic/go-crowdsensing/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"sync"
	"testing"
	"time"
)

type MockKafkaClient struct {
	mu          sync.Mutex
	records     []*kgo.Record
	shouldError bool
}

func (mkc *MockKafkaClient) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {

	if mkc.shouldError {
		go promise(r, errors.New("dummy error"))
		return
	}

	mkc.mu.Lock()
	mkc.records = append(mkc.records, r)
	mkc.mu.Unlock()
	go promise(r, nil)
}

func testEvents() []entities.Event {
	valid := true
	timestamp := time.Date(2024, 10, 14, 12, 0, 0, 0, time.UTC)
	return []entities.Event{
		{
			CampaignID:   "campaign-1",
			Sequence:     3,
			Cycle:        1,
			Type:         entities.EventDataSubmitted,
			Timestamp:    timestamp,
			User:         "user1",
			Verifier:     "verifier1",
			DataLocation: "ipfs://datahash",
			Amount:       10000000000000000,
		},
		{
			CampaignID: "campaign-1",
			Sequence:   4,
			Cycle:      1,
			Type:       entities.EventDataVerified,
			Timestamp:  timestamp,
			User:       "user1",
			Verifier:   "verifier1",
			IsValid:    &valid,
		},
	}
}

func TestClient_PublishEvents(t *testing.T) {

	testData := []struct {
		name        string
		events      []entities.Event
		shouldError bool
	}{
		{
			name:        "TestPublishEvents_1",
			events:      testEvents(),
			shouldError: false,
		},
		{
			name:        "TestPublishEvents_2",
			events:      testEvents(),
			shouldError: true,
		},
		{
			name:        "TestPublishEvents_Empty",
			events:      nil,
			shouldError: false,
		},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {

			mock := &MockKafkaClient{
				shouldError: testRun.shouldError,
			}
			kc := NewClient(mock, zap.NewNop().Sugar())

			err := kc.PublishEvents(context.Background(), testRun.events)

			if testRun.shouldError {
				assert.Error(t, err)
				t.Logf("Err: %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Len(t, mock.records, len(testRun.events))

		})
	}
}

func TestClient_CreateEventRecord(t *testing.T) {
	event := testEvents()[1]

	record, err := createEventRecord(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("campaign-1"), record.Key)
	require.Len(t, record.Headers, 2)
	assert.Equal(t, "sequence", record.Headers[0].Key)
	assert.Equal(t, uint64(4), binary.BigEndian.Uint64(record.Headers[0].Value))
	assert.Equal(t, "type", record.Headers[1].Key)
	assert.Equal(t, "data.verified", string(record.Headers[1].Value))

	var decoded entities.Event
	err = json.Unmarshal(record.Value, &decoded)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(event, decoded))

	var fields map[string]any
	err = json.Unmarshal(record.Value, &fields)
	require.NoError(t, err)
	assert.Equal(t, true, fields["isValid"])
	assert.Equal(t, float64(0), fields["amount"])
	assert.NotContains(t, fields, "dataLocation")
}

func TestClient_CreateEventRecord_givenZeroValues_thenSerialized(t *testing.T) {
	events := []entities.Event{
		{CampaignID: "campaign-1", Sequence: 1, Cycle: 1, Type: entities.EventFeeUpdated, Amount: 0},
		{CampaignID: "campaign-1", Sequence: 2, Cycle: 1, Type: entities.EventFundsWithdrawn, User: "owner", Amount: 0},
		{CampaignID: "campaign-1", Sequence: 3, Cycle: 2, Type: entities.EventCampaignRestarted, MinParticipants: 0, RewardAmount: 0},
	}

	for _, event := range events {
		t.Run(string(event.Type), func(t *testing.T) {
			record, err := createEventRecord(event)
			require.NoError(t, err)

			var fields map[string]any
			err = json.Unmarshal(record.Value, &fields)
			require.NoError(t, err)
			for _, key := range []string{"amount", "chunkSize", "minParticipants", "rewardAmount"} {
				assert.Contains(t, fields, key)
				assert.Equal(t, float64(0), fields[key])
			}
			assert.NotContains(t, fields, "isValid")
		})
	}
}
