package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meftunca/postbench/pkg/auth"
	"github.com/meftunca/postbench/pkg/compression"
	"github.com/meftunca/postbench/pkg/config"
	pbjson "github.com/meftunca/postbench/pkg/json"
	"github.com/meftunca/postbench/pkg/payload"
	"github.com/meftunca/postbench/pkg/serialization"
	"github.com/meftunca/postbench/pkg/types"
)

type received struct {
	contentType     string
	contentEncoding string
	authorization   string
	body            []byte
}

func newRecordingServer(t *testing.T, status int) (*httptest.Server, func() []received) {
	t.Helper()
	var mu sync.Mutex
	var got []received

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, received{
			contentType:     r.Header.Get("Content-Type"),
			contentEncoding: r.Header.Get("Content-Encoding"),
			authorization:   r.Header.Get("Authorization"),
			body:            body,
		})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(ts.Close)

	return ts, func() []received {
		mu.Lock()
		defer mu.Unlock()
		return append([]received(nil), got...)
	}
}

func TestHTTPPoster_Post(t *testing.T) {
	ts, got := newRecordingServer(t, http.StatusOK)

	p := NewHTTPPoster(config.DefaultConfig().HTTP, nil, nil)
	err := p.Post(context.Background(), ts.URL+"/collections", payload.New(0))
	require.NoError(t, err)

	reqs := got()
	require.Len(t, reqs, 1)
	assert.Equal(t, "application/json", reqs[0].contentType)
	assert.Empty(t, reqs[0].contentEncoding)
	assert.JSONEq(t, `{"key":"test-0"}`, string(reqs[0].body))
}

func TestHTTPPoster_NonSuccessStatus(t *testing.T) {
	ts, _ := newRecordingServer(t, http.StatusInternalServerError)

	p := NewHTTPPoster(config.DefaultConfig().HTTP, nil, nil)
	err := p.Post(context.Background(), ts.URL, payload.New(1))

	var rf *types.RequestFailure
	require.True(t, errors.As(err, &rf))
	assert.Equal(t, http.StatusInternalServerError, rf.StatusCode)
	assert.Equal(t, ts.URL, rf.URL)
	assert.ErrorIs(t, err, types.ErrRequestFailed)
}

func TestHTTPPoster_TransportError(t *testing.T) {
	ts, _ := newRecordingServer(t, http.StatusOK)
	url := ts.URL
	ts.Close()

	p := NewHTTPPoster(config.DefaultConfig().HTTP, nil, nil)
	err := p.Post(context.Background(), url, payload.New(0))

	var rf *types.RequestFailure
	require.True(t, errors.As(err, &rf))
	assert.Zero(t, rf.StatusCode)

	var pe *types.ProbeError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, types.ErrCodeNetworkError, pe.Code)
}

func TestHTTPPoster_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	cfg := config.DefaultConfig().HTTP
	cfg.Timeout = 20 * time.Millisecond
	p := NewHTTPPoster(cfg, nil, nil)

	err := p.Post(context.Background(), ts.URL, payload.New(0))
	assert.ErrorIs(t, err, types.ErrRequestFailed)

	var pe *types.ProbeError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, types.ErrCodeTimeout, pe.Code)
}

func TestHTTPPoster_SerializationError(t *testing.T) {
	p := NewHTTPPoster(config.DefaultConfig().HTTP, nil, nil)
	err := p.Post(context.Background(), "http://127.0.0.1:1", map[string]interface{}{"bad": make(chan int)})

	var pe *types.ProbeError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, types.ErrCodeSerializationError, pe.Code)
}

func TestHTTPPoster_Compression(t *testing.T) {
	ts, got := newRecordingServer(t, http.StatusCreated)

	cfg := config.DefaultConfig()
	cfg.JSON.Library = pbjson.JSONLibrarySonic
	cfg.Compression.Type = config.CompressionGzip

	p, err := NewHTTPPosterFromConfig(cfg)
	require.NoError(t, err)
	require.NoError(t, p.Post(context.Background(), ts.URL, payload.New(9)))

	reqs := got()
	require.Len(t, reqs, 1)
	assert.Equal(t, "gzip", reqs[0].contentEncoding)

	gz := compression.NewGzipCompressor(0)
	body, err := gz.Decompress(reqs[0].body)
	require.NoError(t, err)

	var decoded payload.Payload
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "test-9", decoded.Key)
}

func TestHTTPPoster_MsgPackLZ4(t *testing.T) {
	ts, got := newRecordingServer(t, http.StatusOK)

	cfg := config.DefaultConfig()
	cfg.Serialization.Format = config.SerializationMsgPack
	cfg.Compression.Type = config.CompressionLZ4

	p, err := NewHTTPPosterFromConfig(cfg)
	require.NoError(t, err)
	require.NoError(t, p.Post(context.Background(), ts.URL, payload.New(4)))

	reqs := got()
	require.Len(t, reqs, 1)
	assert.Equal(t, "application/msgpack", reqs[0].contentType)
	assert.Equal(t, "lz4", reqs[0].contentEncoding)

	body, err := compression.NewLZ4Compressor(0).Decompress(reqs[0].body)
	require.NoError(t, err)
	var decoded payload.Payload
	require.NoError(t, serialization.NewMsgPackCodec().Unmarshal(body, &decoded))
	assert.Equal(t, "test-4", decoded.Key)
}

func TestHTTPPoster_BearerToken(t *testing.T) {
	ts, got := newRecordingServer(t, http.StatusOK)

	cfg := config.DefaultConfig()
	cfg.Auth.JWTSecret = "s3cret"

	p, err := NewHTTPPosterFromConfig(cfg)
	require.NoError(t, err)
	require.NoError(t, p.Post(context.Background(), ts.URL, payload.New(0)))

	reqs := got()
	require.Len(t, reqs, 1)
	token, ok := auth.BearerToken(reqs[0].authorization)
	require.True(t, ok)

	authenticator, err := auth.NewAuthenticator(cfg.Auth)
	require.NoError(t, err)
	claims, err := authenticator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "postbench", claims.Subject)
}

func TestNewHTTPClient(t *testing.T) {
	cfg := config.HTTPConfig{Timeout: time.Second, KeepAlive: false, MaxIdleConns: 7, MaxIdleConnsPerHost: 3}
	c := NewHTTPClient(cfg)

	assert.Equal(t, time.Second, c.Timeout)
	transport, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.True(t, transport.DisableKeepAlives)
	assert.Equal(t, 7, transport.MaxIdleConns)
	assert.Equal(t, 3, transport.MaxIdleConnsPerHost)
}

func TestPosterFunc(t *testing.T) {
	var gotURL string
	var p Poster = PosterFunc(func(ctx context.Context, url string, body interface{}) error {
		gotURL = url
		return nil
	})
	require.NoError(t, p.Post(context.Background(), "http://x/collections", nil))
	assert.Equal(t, "http://x/collections", gotURL)
}
