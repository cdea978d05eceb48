//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "peoplehub/pkg/platform/audit"
	"peoplehub/pkg/testutil/containers"
)

func TestStore_PublishesToRedpanda(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := containers.GetManager().GetRedpanda(t)
	const topic = "peoplehub.audit.test"
	broker.CreateTopic(t, topic)

	client, err := NewClient([]string{broker.Broker}, topic)
	require.NoError(t, err)
	defer client.Close()

	store := New(client, topic)
	require.NoError(t, store.Append(context.Background(), audit.Event{
		ProfileID: "p-1",
		Action:    string(audit.EventEmailUnlinked),
		Timestamp: time.Now(),
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.NotEmpty(t, records)
	var body map[string]string
	require.NoError(t, json.Unmarshal(records[0].Value, &body))
	require.Equal(t, "email_unlinked", body["action"])
	require.Equal(t, "p-1", string(records[0].Key))
}
