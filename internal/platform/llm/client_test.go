package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	service string
	err     error
	calls   int
}

func (o *recordingObserver) ObserveExternalCall(service string, _ time.Time, err error) {
	o.service = service
	o.err = err
	o.calls++
}

func TestComplete_SendsRequestAndReturnsContent(t *testing.T) {
	received := make(chan chatRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received <- req

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Report body  "}}]}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := New(Config{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Temperature: 0.3}, obs)

	text, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a radiologist."},
		{Role: RoleUser, Content: "scores"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Report body", text)

	got := <-received
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, 1500, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)

	assert.Equal(t, 1, obs.calls)
	assert.Equal(t, "llm", obs.service)
	assert.NoError(t, obs.err)
}

func TestComplete_MissingAPIKey(t *testing.T) {
	c := New(Config{BaseURL: "http://unused"}, nil)
	_, err := c.Complete(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := New(Config{BaseURL: srv.URL, APIKey: "bad"}, obs)
	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Incorrect API key provided")
	assert.Error(t, obs.err)
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL, APIKey: "k"}, nil).Complete(context.Background(), nil)
	assert.EqualError(t, err, "chat completion returned no choices")
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	text, err := New(Config{BaseURL: srv.URL, APIKey: "k"}, nil).Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestComplete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(Config{BaseURL: srv.URL, APIKey: "k"}, nil).Complete(ctx, nil)
	assert.Error(t, err)
}
