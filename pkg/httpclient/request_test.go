package httpclient

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestBuilder_Defaults(t *testing.T) {
	req, err := NewRequestBuilder().URL("http://pay.local/charges").Build()
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, req.Method)
	assert.Empty(t, req.Header)
	assert.Empty(t, req.Query)
	assert.Nil(t, req.Body)
	assert.Zero(t, req.Timeout)
}

func TestRequestBuilder_EmptyURL(t *testing.T) {
	_, err := NewRequestBuilder().Build()
	assert.ErrorIs(t, err, ErrEmptyURL)
}

func TestRequestBuilder_NegativeTimeout(t *testing.T) {
	_, err := NewRequestBuilder().URL("http://x").Timeout(-time.Second).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestRequestBuilder_HeadersAreCaseInsensitive(t *testing.T) {
	req, err := NewRequestBuilder().
		URL("http://x").
		Header("X-Trace", "a").
		Header("x-trace", "b").
		Build()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x-trace": "b"}, req.Header)
}

func TestRequestBuilder_BuildSnapshotsState(t *testing.T) {
	b := NewRequestBuilder().URL("http://x").Header("a", "1")
	first, err := b.Build()
	require.NoError(t, err)

	b.Header("b", "2")
	assert.Len(t, first.Header, 1)
}

func TestRequestBuilder_Reset(t *testing.T) {
	b := NewRequestBuilder().Method("post").URL("http://x").Header("a", "1").Timeout(time.Second)
	b.Reset()

	_, err := b.Build()
	assert.ErrorIs(t, err, ErrEmptyURL)

	req, err := b.URL("http://y").Build()
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Empty(t, req.Header)
	assert.Zero(t, req.Timeout)
}

func TestRequest_HTTPRequest(t *testing.T) {
	req, err := NewRequestBuilder().
		Method(http.MethodPost).
		URL("http://pay.local/charges?x=1").
		Query("limit", "5").
		JSONBody(map[string]string{"k": "v"}).
		Timeout(time.Second).
		Build()
	require.NoError(t, err)

	httpReq, cancel, err := req.HTTPRequest(context.Background())
	require.NoError(t, err)
	defer cancel()

	assert.Equal(t, http.MethodPost, httpReq.Method)
	assert.Equal(t, "1", httpReq.URL.Query().Get("x"))
	assert.Equal(t, "5", httpReq.URL.Query().Get("limit"))
	assert.Equal(t, "application/json", httpReq.Header.Get("Content-Type"))
	_, hasDeadline := httpReq.Context().Deadline()
	assert.True(t, hasDeadline)
	assert.NotNil(t, httpReq.GetBody)

	body, err := io.ReadAll(httpReq.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(body))
}
