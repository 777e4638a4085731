package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

func TestPublisherRecordsChangeEvents(t *testing.T) {
	t.Parallel()

	pub := New()
	id, err := pub.Publish(context.Background(), "edital-changes", monitor.ChangeEvent{URL: "https://exemplo.com", Cycle: 2})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id)

	id, err = pub.Publish(context.Background(), "edital-changes", monitor.ChangeEvent{URL: "https://exemplo.com", Cycle: 5})
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, 5, msgs[1].Payload.(monitor.ChangeEvent).Cycle)

	msgs[0].Topic = "modified"
	assert.Equal(t, "edital-changes", pub.Messages()[0].Topic)
}

func TestPublisherRequiresTopic(t *testing.T) {
	t.Parallel()

	_, err := New().Publish(context.Background(), "", "payload")
	require.Error(t, err)
	assert.Empty(t, New().Messages())
}
