package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "peoplehub/pkg/platform/audit"
	"peoplehub/pkg/platform/circuit"
)

type fakeProducer struct {
	err     error
	records []*kgo.Record
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func TestStore_Append(t *testing.T) {
	producer := &fakeProducer{}
	store := New(producer, "peoplehub.audit", WithMetrics(NewMetrics(prometheus.NewRegistry())))

	err := store.Append(context.Background(), audit.Event{
		Timestamp: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		ProfileID: "p-1",
		Action:    string(audit.EventSignedIn),
		Device:    "Chrome on macOS",
	})
	require.NoError(t, err)
	require.Len(t, producer.records, 1)

	record := producer.records[0]
	assert.Equal(t, "peoplehub.audit", record.Topic)
	assert.Equal(t, []byte("p-1"), record.Key)

	var body map[string]string
	require.NoError(t, json.Unmarshal(record.Value, &body))
	assert.Equal(t, "security", body["category"])
	assert.Equal(t, "Chrome on macOS", body["device"])
	assert.Equal(t, "2026-02-01T10:00:00Z", body["timestamp"])
}

func TestStore_CircuitOpensOnRepeatedFailures(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker unreachable")}
	metrics := NewMetrics(prometheus.NewRegistry())
	store := New(producer, "peoplehub.audit",
		WithMetrics(metrics),
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))),
	)

	for range 2 {
		assert.Error(t, store.Append(context.Background(), audit.Event{Action: "x"}))
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CircuitBreakerState))

	err := store.Append(context.Background(), audit.Event{Action: "x"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Len(t, producer.records, 2, "open circuit must not reach the broker")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CircuitDropped))
}
