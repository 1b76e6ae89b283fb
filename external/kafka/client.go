package kafka

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/qubic/go-crowdsensing/entities"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"sync"
)

type KafkaClient interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

type Client struct {
	kcl    KafkaClient
	logger *zap.SugaredLogger
}

func NewClient(kafkaClient KafkaClient, logger *zap.SugaredLogger) *Client {
	return &Client{
		kcl:    kafkaClient,
		logger: logger,
	}
}

// PublishEvents produces one record per event and waits for all of them to be
// acknowledged. Any failed record fails the whole batch.
func (kc *Client) PublishEvents(ctx context.Context, events []entities.Event) error {

	records := make([]*kgo.Record, 0, len(events))
	for _, event := range events {
		record, err := createEventRecord(event)
		if err != nil {
			return fmt.Errorf("creating record for event [%d]: %w", event.Sequence, err)
		}
		records = append(records, record)
	}

	wg := sync.WaitGroup{}
	errorChannel := make(chan error, len(records))

	for _, record := range records {
		wg.Add(1)
		kc.kcl.Produce(ctx, record, func(r *kgo.Record, err error) {
			defer wg.Done()
			if err != nil {
				kc.logger.Errorw("error producing event record", "key", string(record.Key), "error", err)
				errorChannel <- err
				return
			}
			errorChannel <- nil
		})
	}

	wg.Wait()
	close(errorChannel)

	var errs []error
	for err := range errorChannel {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("encountered [%d] errors while producing event records: %w", len(errs), errors.Join(errs...))
	}

	return nil
}

func createEventRecord(event entities.Event) (*kgo.Record, error) {

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshalling event to json: %w", err)
	}

	return &kgo.Record{
		Key:   []byte(event.CampaignID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "sequence", Value: binary.BigEndian.AppendUint64(nil, event.Sequence)},
			{Key: "type", Value: []byte(event.Type)},
		},
	}, nil
}
