package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendOrderedFragments(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"recipient_id":"C1","text":"Found your card."},
			{"recipient_id":"C1","image":"http://x/y.png"},
			{"recipient_id":"C1","text":"  Shall I proceed?  "}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	fragments, err := client.Send(context.Background(), "C1", "1234", map[string]string{"customer_id": "c-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Found your card.", "Shall I proceed?"}, fragments)
	assert.Equal(t, "C1", got.Sender)
	assert.Equal(t, "1234", got.Message)
	assert.Equal(t, "c-1", got.Metadata["customer_id"])
}

func TestClient_SendWithoutCallID(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`[{"text":"ok"}]`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Send(context.Background(), "", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "unknown_call", got.Sender)
	assert.Nil(t, got.Metadata)
}

func TestClient_SendEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Send(context.Background(), "C1", "hi", nil)
	assert.True(t, errors.Is(err, ErrEmptyReply))
}

func TestClient_SendNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Send(context.Background(), "C1", "hi", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamStatus))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestClient_SendMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a list"`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Send(context.Background(), "C1", "hi", nil)
	assert.Error(t, err)
}

func TestClient_SendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := NewClient(srv.URL, 50*time.Millisecond).Send(context.Background(), "C1", "hi", nil)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
