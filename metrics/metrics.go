package metrics

import (
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	submissionCount         prometheus.Counter
	verificationCount       *prometheus.CounterVec
	rewardedCount           prometheus.Counter
	distributedRewardsTotal prometheus.Counter
	escrowBalanceGauge      prometheus.Gauge
	rejectedCount           *prometheus.CounterVec
	publishedEventCount     prometheus.Counter
	publishedSequenceGauge  prometheus.Gauge
	sourceSequenceGauge     prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	m := Metrics{
		// campaign operations
		submissionCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_submission_count", namespace),
			Help: "The total number of accepted data submissions",
		}),
		verificationCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_verification_count", namespace),
			Help: "The total number of verdicts by validity",
		}, []string{"valid"}),
		rewardedCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_rewarded_participant_count", namespace),
			Help: "The total number of rewarded participants",
		}),
		distributedRewardsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_distributed_rewards_total", namespace),
			Help: "The total amount of distributed rewards in base units",
		}),
		escrowBalanceGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_escrow_balance", namespace),
			Help: "The current escrow balance in base units",
		}),
		rejectedCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_rejected_operation_count", namespace),
			Help: "The total number of rejected operations by operation and error kind",
		}, []string{"operation", "kind"}),
		// event relay
		publishedEventCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_published_event_count", namespace),
			Help: "The total number of events published to kafka",
		}),
		publishedSequenceGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_published_sequence", namespace),
			Help: "The latest published event sequence",
		}),
		sourceSequenceGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_source_sequence", namespace),
			Help: "The latest known event sequence of the campaign",
		}),
	}
	return &m
}

func (m *Metrics) IncSubmissions() {
	m.submissionCount.Inc()
}

func (m *Metrics) IncVerifications(valid bool) {
	m.verificationCount.WithLabelValues(fmt.Sprint(valid)).Inc()
}

func (m *Metrics) AddDistributedRewards(count int, total uint64) {
	m.rewardedCount.Add(float64(count))
	m.distributedRewardsTotal.Add(float64(total))
}

func (m *Metrics) SetEscrowBalance(balance uint64) {
	m.escrowBalanceGauge.Set(float64(balance))
}

func (m *Metrics) IncRejected(operation string, kind string) {
	m.rejectedCount.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) AddPublishedEvents(count int) {
	m.publishedEventCount.Add(float64(count))
}

func (m *Metrics) SetPublishedSequence(sequence uint64) {
	m.publishedSequenceGauge.Set(float64(sequence))
}

func (m *Metrics) SetSourceSequence(sequence uint64) {
	m.sourceSequenceGauge.Set(float64(sequence))
}
