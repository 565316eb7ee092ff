package mail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu   sync.Mutex
	sent []Message
	err  error
	done chan struct{}
}

func (r *recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	r.sent = append(r.sent, msg)
	r.mu.Unlock()
	if r.done != nil {
		close(r.done)
	}
	return r.err
}

func TestRender_OTP(t *testing.T) {
	body, err := Render(Message{Template: "otp", Data: map[string]any{"code": "123456", "minutes": 10}})
	require.NoError(t, err)
	assert.Contains(t, body, "Hello there")
	assert.Contains(t, body, "123456")
	assert.Contains(t, body, "10 minutes")
}

func TestRender_PlainAndUnknown(t *testing.T) {
	body, err := Render(Message{Body: "raw"})
	require.NoError(t, err)
	assert.Equal(t, "raw", body)

	_, err = Render(Message{Template: "missing"})
	assert.Error(t, err)
}

func TestAsync_SwallowsErrors(t *testing.T) {
	rec := &recorder{err: errors.New("smtp down"), done: make(chan struct{})}
	a := NewAsync(rec, time.Second, zap.NewNop())

	assert.NoError(t, a.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "hi"}))

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not dispatched")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.sent, 1)
}

func TestSMTPDispatcher_NoRecipients(t *testing.T) {
	d := NewSMTPDispatcher(SMTPConfig{Host: "localhost", Port: 25})
	assert.Error(t, d.Send(context.Background(), Message{Subject: "x"}))
}

func TestLogDispatcher(t *testing.T) {
	d := NewLogDispatcher(zap.NewNop())
	assert.NoError(t, d.Send(context.Background(), Message{To: []string{"a@example.com"}, Template: "plain", Data: map[string]any{"body": "x"}}))
}
