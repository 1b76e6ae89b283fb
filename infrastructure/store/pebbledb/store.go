package pebbledb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/cockroachdb/pebble"
	"github.com/qubic/go-crowdsensing/entities"
	"path/filepath"
)

const lastPublishedSequencePerCampaignKey = 0x00

type Store struct {
	db *pebble.DB
}

func NewProcessorStore(storeDir string) (*Store, error) {
	db, err := pebble.Open(filepath.Join(storeDir, "relay-store"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %v", err)
	}

	return &Store{db: db}, nil
}

func sequenceKey(campaignID string) []byte {
	key := []byte{lastPublishedSequencePerCampaignKey}
	return append(key, campaignID...)
}

func (ps *Store) SetLastPublishedSequence(campaignID string, sequence uint64) error {
	value := binary.BigEndian.AppendUint64(nil, sequence)

	err := ps.db.Set(sequenceKey(campaignID), value, pebble.Sync)
	if err != nil {
		return fmt.Errorf("setting last published sequence: %v", err)
	}

	return nil
}

func (ps *Store) GetLastPublishedSequence(campaignID string) (uint64, error) {
	value, closer, err := ps.db.Get(sequenceKey(campaignID))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, entities.ErrStoreEntityNotFound
	}

	if err != nil {
		return 0, fmt.Errorf("getting last published sequence: %v", err)
	}
	defer closer.Close()

	return binary.BigEndian.Uint64(value), nil
}

func (ps *Store) GetLastPublishedSequenceForAllCampaigns() (map[string]uint64, error) {
	iter, err := ps.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{lastPublishedSequencePerCampaignKey},
		UpperBound: []byte{lastPublishedSequencePerCampaignKey + 1},
	})
	if err != nil {
		return nil, fmt.Errorf("creating iterator: %v", err)
	}
	defer iter.Close()

	sequences := make(map[string]uint64)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()

		value, err := iter.ValueAndErr()
		if err != nil {
			return nil, fmt.Errorf("getting value from iter: %v", err)
		}

		sequences[string(key[1:])] = binary.BigEndian.Uint64(value)
	}

	return sequences, nil
}

func (ps *Store) Close() error {
	return ps.db.Close()
}
