package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globo/viewer/internal/domain"
)

const boundary = `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}`

const countReply = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"count":1500},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}]}`

type capturedRequest struct {
	method      string
	path        string
	query       map[string]string
	contentType string
	body        string
}

func newBackendServer(t *testing.T, status int, reply string) (*BackendClient, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{query: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		for k := range r.URL.Query() {
			got.query[k] = r.URL.Query().Get(k)
		}
		got.contentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		got.body = string(b)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return NewBackendClient(srv.URL+"/", "/tos2/geojson/multipolygon", "/v1/counts/multipolygon", 5*time.Second), got
}

func TestBackendClientSimplify(t *testing.T) {
	client, got := newBackendServer(t, http.StatusOK, boundary)

	doc, err := client.Simplify(context.Background(), "5", []byte(boundary))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Len())

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/tos2/geojson/multipolygon", got.path)
	assert.Equal(t, map[string]string{"precision": "5"}, got.query)
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, boundary, got.body)
}

func TestBackendClientCount(t *testing.T) {
	client, got := newBackendServer(t, http.StatusOK, countReply)

	doc, err := client.Count(context.Background(), "12", "2015-01-01", "2015-01-02", []byte(boundary))
	require.NoError(t, err)

	count, ok := domain.CountOf(doc.Features()[0])
	assert.True(t, ok)
	assert.Equal(t, 1500.0, count)
	assert.Equal(t, "/v1/counts/multipolygon", got.path)
	assert.Equal(t, map[string]string{"precision": "12", "start": "2015-01-01", "end": "2015-01-02"}, got.query)
}

func TestBackendClientErrors(t *testing.T) {
	t.Run("raw server text", func(t *testing.T) {
		client, _ := newBackendServer(t, http.StatusBadRequest, "Missing start date\n")
		_, err := client.Count(context.Background(), "5", "", "", []byte(boundary))

		var be *BackendError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, http.StatusBadRequest, be.Status)
		assert.Equal(t, "Missing start date", be.Body)
		assert.Equal(t, "Missing start date", failureMessage(KindCount, err))
		assert.Equal(t, simplifyFailure, failureMessage(KindSimplify, err))
	})

	t.Run("malformed reply", func(t *testing.T) {
		client, _ := newBackendServer(t, http.StatusOK, `{"type":"Nope"}`)
		_, err := client.Simplify(context.Background(), "5", []byte(boundary))
		assert.ErrorIs(t, err, domain.ErrMalformedDocument)
	})

	t.Run("unreachable", func(t *testing.T) {
		client := NewBackendClient("http://127.0.0.1:1", "/s", "/c", time.Second)
		_, err := client.Simplify(context.Background(), "5", []byte(boundary))
		assert.Error(t, err)
		assert.Equal(t, simplifyFailure, failureMessage(KindSimplify, err))
	})

	t.Run("empty error body", func(t *testing.T) {
		be := &BackendError{Status: 502}
		assert.Equal(t, "backend returned status 502", be.Error())
	})
}
