package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/vectorvault/internal/events"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestChannel(t *testing.T) {
	orgID := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	assert.Equal(t, "org:7c9e6679-7425-40de-944b-e07fc1f90ae7:documents", events.Channel(orgID))
}

func TestRedisPublisher_FailureIsLoggedNotRaised(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	pub := events.NewRedisPublisher(client, zap.New(core))
	pub.Publish(context.Background(), models.Event{
		Type:           models.EventDocumentCreated,
		OrganizationID: uuid.New(),
		DocumentIDs:    []uuid.UUID{uuid.New()},
	})

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "publish event", logs.All()[0].Message)
}

type fakeSubscriber struct {
	msgs         chan []byte
	err          error
	unsubscribed atomic.Bool
}

func (f *fakeSubscriber) Subscribe(context.Context, uuid.UUID) (<-chan []byte, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.msgs, func() { f.unsubscribed.Store(true) }, nil
}

func TestHub_StreamsEventsUntilClientLeaves(t *testing.T) {
	sub := &fakeSubscriber{msgs: make(chan []byte, 1)}
	hub := events.NewHub(sub, zap.NewNop())
	orgID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, orgID)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)

	payload, err := json.Marshal(models.Event{Type: models.EventDocumentDeleted, OrganizationID: orgID})
	require.NoError(t, err)
	sub.msgs <- payload

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := conn.ReadMessage()
	require.NoError(t, err)

	var event models.Event
	require.NoError(t, json.Unmarshal(got, &event))
	assert.Equal(t, models.EventDocumentDeleted, event.Type)
	assert.Equal(t, 1, hub.Connections(orgID))

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return hub.Connections(orgID) == 0 && sub.unsubscribed.Load()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_SubscribeFailureIs500(t *testing.T) {
	hub := events.NewHub(&fakeSubscriber{err: errors.New("redis down")}, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	hub.Serve(w, r, uuid.New())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestNopPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		events.NopPublisher{}.Publish(context.Background(), models.Event{})
	})
}
