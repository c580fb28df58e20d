package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"payee-ledger/internal/core/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSigner struct{}

func (stubSigner) Sign(secretKey, payload string) string { return "sig:" + secretKey }
func (stubSigner) Verify(secretKey, payload, signature string) bool {
	return signature == "sig:"+secretKey
}

func TestWebhookNotifier_Delivers(t *testing.T) {
	received := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		received <- r
		bodies <- body
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL, "whsec", stubSigner{}, srv.Client(), []time.Duration{time.Millisecond}, zerolog.Nop())

	owner := uuid.New()
	err := notifier.Notify(context.Background(), owner, ports.EventTransferCompleted, map[string]string{"transaction_id": "abc"})
	require.NoError(t, err)

	select {
	case req := <-received:
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		assert.Equal(t, "sig:whsec", req.Header.Get("X-Ledger-Signature"))
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(<-bodies, &envelope))
	assert.Equal(t, ports.EventTransferCompleted, envelope.Event)
	assert.Equal(t, owner.String(), envelope.OwnerID)
}

func TestWebhookNotifier_RetriesOnServerError(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		close(done)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL, "whsec", stubSigner{}, srv.Client(), []time.Duration{time.Millisecond, time.Millisecond}, zerolog.Nop())

	err := notifier.Notify(context.Background(), uuid.New(), ports.EventTransferFailed, nil)
	require.NoError(t, err)

	select {
	case <-done:
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	case <-time.After(2 * time.Second):
		t.Fatal("webhook retry did not happen")
	}
}

func TestWebhookNotifier_NoEndpointSkips(t *testing.T) {
	notifier := NewWebhookNotifier("", "whsec", stubSigner{}, http.DefaultClient, nil, zerolog.Nop())
	err := notifier.Notify(context.Background(), uuid.New(), ports.EventDepositCompleted, nil)
	assert.NoError(t, err)
}

func TestRedisPublisher_PublishesOnOwnerChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	owner := uuid.New()
	sub := client.Subscribe(context.Background(), Channel(owner))
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	publisher := NewRedisPublisher(client, zerolog.Nop())
	require.NoError(t, publisher.Notify(context.Background(), owner, ports.EventWithdrawCompleted, map[string]string{"amount": "25"}))

	select {
	case msg := <-sub.Channel():
		var envelope EventEnvelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &envelope))
		assert.Equal(t, ports.EventWithdrawCompleted, envelope.Event)
		assert.Equal(t, owner.String(), envelope.OwnerID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received on owner channel")
	}
}

func TestMulti_AttemptsAllSinks(t *testing.T) {
	var first, second int
	sinkA := sinkFunc(func() error { first++; return assert.AnError })
	sinkB := sinkFunc(func() error { second++; return nil })

	err := Multi{sinkA, sinkB}.Notify(context.Background(), uuid.New(), ports.EventTransferCompleted, nil)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

type sinkFunc func() error

func (f sinkFunc) Notify(ctx context.Context, ownerID uuid.UUID, event string, payload interface{}) error {
	return f()
}
