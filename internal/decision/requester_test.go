package decision

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ludus/internal/pkg/circuit"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) Provider() string { return "openai" }
func (m *MockBackend) Model() string    { return "gpt-test" }

func TestRequestSuccess(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Chat", mock.Anything, "sys", "user").
		Return(`{"action":"buy","symbol":"BTC/USDT","quantity":0.5,"confidence":0.9}`, nil).Once()

	r := NewRequester(backend, nil, time.Second)
	res := r.Request(context.Background(), "sys", "user")

	assert.False(t, res.Errored())
	assert.Equal(t, ActionBuy, res.Decision.Action)
	assert.Equal(t, "BTC/USDT", res.Decision.Symbol)
	backend.AssertExpectations(t)
}

func TestRequestTransportErrorFallsBackToHold(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("connection refused")).Once()

	r := NewRequester(backend, nil, time.Second)
	res := r.Request(context.Background(), "sys", "user")

	assert.True(t, res.Errored())
	assert.Contains(t, res.Err, "model request failed")
	assert.Contains(t, res.Err, "connection refused")
	assert.Equal(t, ActionHold, res.Decision.Action)
	assert.Equal(t, 0.0, res.Decision.Confidence)
	backend.AssertExpectations(t)
}

func TestRequestParseFailureKeepsRawOutput(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return("the market feels uncertain, I abstain", nil).Once()

	r := NewRequester(backend, nil, time.Second)
	res := r.Request(context.Background(), "sys", "user")

	assert.True(t, res.Errored())
	assert.Equal(t, ActionHold, res.Decision.Action)
	assert.Equal(t, "the market feels uncertain, I abstain", res.RawOutput)
	backend.AssertExpectations(t)
}

func TestRequestTruncatesLongRawOutput(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(strings.Repeat("x", 5000), nil).Once()

	r := NewRequester(backend, nil, time.Second)
	res := r.Request(context.Background(), "sys", "user")

	assert.True(t, res.Errored())
	assert.Len(t, res.RawOutput, rawKeepLen+len("..."))
	backend.AssertExpectations(t)
}

func TestRequestFailuresTripBreaker(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("timeout")).Twice()

	breaker := circuit.NewBreaker("openai", 2, time.Hour)
	r := NewRequester(backend, breaker, time.Second)

	r.Request(context.Background(), "sys", "user")
	assert.Equal(t, circuit.StateClosed, breaker.State())

	r.Request(context.Background(), "sys", "user")
	assert.Equal(t, circuit.StateOpen, breaker.State())

	// Third request trips on the open breaker without touching the backend.
	res := r.Request(context.Background(), "sys", "user")
	assert.True(t, res.Errored())
	assert.Contains(t, res.Err, "circuit open")
	backend.AssertExpectations(t)
}

func TestRequestSuccessResetsBreaker(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("timeout")).Once()
	backend.On("Chat", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"action":"hold"}`, nil).Once()

	breaker := circuit.NewBreaker("openai", 2, time.Hour)
	r := NewRequester(backend, breaker, time.Second)

	r.Request(context.Background(), "sys", "user")
	res := r.Request(context.Background(), "sys", "user")

	assert.False(t, res.Errored())
	assert.Equal(t, circuit.StateClosed, breaker.State())
	backend.AssertExpectations(t)
}
