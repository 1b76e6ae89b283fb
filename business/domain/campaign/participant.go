package campaign

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Participant is a read-only view of a participant record of the current
// cycle.
type Participant struct {
	Handle           string
	HasKey           bool
	KeyRef           string
	DataLocation     string
	AssignedVerifier string
	FeePaid          uint64
	Submitted        bool
	// Reviewed is set once the assigned verifier delivered a verdict, valid
	// or not.
	Reviewed bool
	Verified bool
	Rewarded bool
}

type participant struct {
	hasKey           bool
	keyRef           string
	dataLocation     string
	assignedVerifier string
	feePaid          uint64
	submitted        bool
	reviewed         bool
	verified         bool
	rewarded         bool
}

func (p *participant) view(handle string) Participant {
	return Participant{
		Handle:           handle,
		HasKey:           p.hasKey,
		KeyRef:           p.keyRef,
		DataLocation:     p.dataLocation,
		AssignedVerifier: p.assignedVerifier,
		FeePaid:          p.feePaid,
		Submitted:        p.submitted,
		Reviewed:         p.reviewed,
		Verified:         p.verified,
		Rewarded:         p.rewarded,
	}
}

// keyReference names the key material of a participant for one cycle. It is
// a reference only, the key itself is handled outside the campaign.
func keyReference(campaignID string, cycle uint32, handle string) string {
	hash := sha256.New()
	hash.Write([]byte(campaignID))
	hash.Write(binary.BigEndian.AppendUint32(nil, cycle))
	hash.Write([]byte(handle))
	return hex.EncodeToString(hash.Sum(nil))
}
