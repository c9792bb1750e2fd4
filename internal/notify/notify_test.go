// Package notify_test tests stage-event publishing against an embedded NATS
// server.
package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/corpus-prep/internal/notify"
	"github.com/book-expert/corpus-prep/internal/pipeline"
)

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	return natsConnection
}

func TestNewRejectsEmptySubject(t *testing.T) {
	t.Parallel()

	_, err := notify.New(nil, "")
	require.ErrorIs(t, err, notify.ErrSubjectEmpty)
}

func TestStageCompletedPublishesEvent(t *testing.T) {
	t.Parallel()

	conn := createTestNatsClient(t)

	subscription, err := conn.SubscribeSync("corpus.stage.completed")
	require.NoError(t, err)

	publisher, err := notify.New(conn, "corpus.stage.completed")
	require.NoError(t, err)

	result := pipeline.StageResult{
		ID:     3,
		Name:   "clean",
		Status: pipeline.StatusFailed,
		Err:    "cleaning produced zero usable entries",
	}

	err = publisher.StageCompleted(context.Background(), result)
	require.NoError(t, err)

	msg, err := subscription.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var event notify.StageCompletedEvent

	require.NoError(t, json.Unmarshal(msg.Data, &event))
	assert.Equal(t, 3, event.StageID)
	assert.Equal(t, "clean", event.StageName)
	assert.Equal(t, "FAILED", event.Status)
	assert.Equal(t, "cleaning produced zero usable entries", event.Error)
	assert.NotEmpty(t, event.Header.WorkflowID)
	assert.NotEmpty(t, event.Header.EventID)
}

func TestEventsOfOneRunShareWorkflowID(t *testing.T) {
	t.Parallel()

	conn := createTestNatsClient(t)

	subscription, err := conn.SubscribeSync("corpus.stage.trace")
	require.NoError(t, err)

	publisher, err := notify.New(conn, "corpus.stage.trace")
	require.NoError(t, err)

	ctx := context.Background()

	first := pipeline.StageResult{ID: 1, Name: "load", Status: pipeline.StatusOK, Err: ""}
	second := pipeline.StageResult{ID: 2, Name: "audit", Status: pipeline.StatusOK, Err: ""}

	require.NoError(t, publisher.StageCompleted(ctx, first))
	require.NoError(t, publisher.StageCompleted(ctx, second))

	var eventOne, eventTwo notify.StageCompletedEvent

	msg, err := subscription.NextMsg(5 * time.Second)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg.Data, &eventOne))

	msg, err = subscription.NextMsg(5 * time.Second)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg.Data, &eventTwo))

	assert.Equal(t, eventOne.Header.WorkflowID, eventTwo.Header.WorkflowID)
	assert.NotEqual(t, eventOne.Header.EventID, eventTwo.Header.EventID)
}
