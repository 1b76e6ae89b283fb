package entities

import "time"

type EventType string

const (
	EventVerifierAdded       EventType = "verifier.added"
	EventVerifierRemoved     EventType = "verifier.removed"
	EventFeeUpdated          EventType = "fee.updated"
	EventEncryptionKeyIssued EventType = "key.generated"
	EventDataSubmitted       EventType = "data.submitted"
	EventDataVerified        EventType = "data.verified"
	EventVerifierPaid        EventType = "verifier.paid"
	EventRewardDistributed   EventType = "reward.distributed"
	EventFundsDeposited      EventType = "funds.deposited"
	EventFundsWithdrawn      EventType = "funds.withdrawn"
	EventCampaignClosed      EventType = "campaign.closed"
	EventCampaignRestarted   EventType = "campaign.restarted"
)

// Event is one record of the campaign event log. Only the fields relevant
// for the event type are set. Numeric fields are always serialized, a zero
// amount or threshold is a value.
type Event struct {
	CampaignID      string    `json:"campaignId"`
	Sequence        uint64    `json:"sequence"`
	Cycle           uint32    `json:"cycle"`
	Type            EventType `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	User            string    `json:"user,omitempty"`
	Verifier        string    `json:"verifier,omitempty"`
	DataLocation    string    `json:"dataLocation,omitempty"`
	ChunkSize       int       `json:"chunkSize"`
	IsValid         *bool     `json:"isValid,omitempty"`
	Amount          uint64    `json:"amount"`
	MinParticipants int       `json:"minParticipants"`
	RewardAmount    uint64    `json:"rewardAmount"`
}
