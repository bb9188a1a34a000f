package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablr/orderwatch/internal/domain"
)

type fakeSender struct {
	name  string
	err   error
	calls int
	last  domain.PushNotification
}

func (f *fakeSender) Send(_ context.Context, n domain.PushNotification) error {
	f.calls++
	f.last = n
	if f.err != nil {
		return f.err
	}
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func samplePush() domain.PushNotification {
	return domain.PushNotification{
		Title: "New order received",
		Body:  "Order #ord-1",
		Data: domain.PushData{
			Type:         domain.NotifyNewOrder,
			OrderID:      "ord-1",
			TargetScreen: "admin/orders",
		},
	}
}

func TestDispatcher_FansOutToAllSenders(t *testing.T) {
	a := &fakeSender{name: "a"}
	b := &fakeSender{name: "b"}
	d := NewDispatcher([]Sender{a, b}, testLogger())

	require.NoError(t, d.Schedule(context.Background(), samplePush()))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, "ord-1", a.last.Data.OrderID)
}

func TestDispatcher_FailureDoesNotBlockOthers(t *testing.T) {
	a := &fakeSender{name: "a", err: errors.New("boom")}
	b := &fakeSender{name: "b"}
	d := NewDispatcher([]Sender{a, b}, testLogger())

	err := d.Schedule(context.Background(), samplePush())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: boom")
	assert.Equal(t, 1, b.calls, "remaining senders still receive the push")
}

func TestDispatcher_NoSenders(t *testing.T) {
	d := NewDispatcher(nil, testLogger())
	require.NoError(t, d.Schedule(context.Background(), samplePush()))
}

func TestPushSender_PostsGatewayPayload(t *testing.T) {
	var got pushMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"data":[]}`))
	}))
	t.Cleanup(srv.Close)

	s := NewPushSender(srv.URL, "tok", []string{"ExponentPushToken[abc]", "ExponentPushToken[def]"})
	require.NoError(t, s.Send(context.Background(), samplePush()))

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, []string{"ExponentPushToken[abc]", "ExponentPushToken[def]"}, got.To)
	assert.Equal(t, "New order received", got.Title)
	assert.Equal(t, domain.NotifyNewOrder, got.Data.Type)
	assert.Equal(t, "admin/orders", got.Data.TargetScreen)
}

func TestPushSender_NoRecipientsIsNoop(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(srv.Close)

	s := NewPushSender(srv.URL, "", nil)
	require.NoError(t, s.Send(context.Background(), samplePush()))
	assert.False(t, called)
}

func TestPushSender_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	s := NewPushSender(srv.URL, "", []string{"tok"})
	err := s.Send(context.Background(), samplePush())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
