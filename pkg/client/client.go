// Package client provides the HTTP collaborator the dispatcher posts
// payloads through. Connection pooling, keep-alive and timeouts belong to
// the wrapped *http.Client.
package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/meftunca/postbench/pkg/auth"
	"github.com/meftunca/postbench/pkg/compression"
	"github.com/meftunca/postbench/pkg/config"
	"github.com/meftunca/postbench/pkg/serialization"
	"github.com/meftunca/postbench/pkg/types"
	"github.com/meftunca/postbench/pkg/version"
)

// maxDrainBytes bounds how much of a response body is read before closing,
// enough for small acknowledgements to keep the connection reusable.
const maxDrainBytes = 64 << 10

// Poster sends one encoded body to url. A nil error means the target answered
// with a 2xx status.
type Poster interface {
	Post(ctx context.Context, url string, body interface{}) error
}

// PosterFunc adapts a function to Poster
type PosterFunc func(ctx context.Context, url string, body interface{}) error

// Post calls f
func (f PosterFunc) Post(ctx context.Context, url string, body interface{}) error {
	return f(ctx, url, body)
}

// HTTPPoster posts encoded bodies through a shared *http.Client.
type HTTPPoster struct {
	HTTPClient *http.Client
	Codec      serialization.Codec
	Compressor compression.Compressor
	UserAgent  string

	// Token is sent as a bearer token when set
	Token string
}

// NewHTTPPoster creates a poster with a client built from cfg. A nil codec
// selects standard JSON; a nil compressor sends bodies uncompressed.
func NewHTTPPoster(cfg config.HTTPConfig, codec serialization.Codec, compressor compression.Compressor) *HTTPPoster {
	if codec == nil {
		codec = serialization.NewJSONCodec(nil)
	}
	if compressor == nil {
		compressor = &compression.NoCompressor{}
	}
	return &HTTPPoster{
		HTTPClient: NewHTTPClient(cfg),
		Codec:      codec,
		Compressor: compressor,
		UserAgent:  version.UserAgent(),
	}
}

// NewHTTPPosterFromConfig wires the poster's codec, compressor and token
// from the full configuration.
func NewHTTPPosterFromConfig(cfg *config.Config) (*HTTPPoster, error) {
	codec, err := serialization.New(cfg)
	if err != nil {
		return nil, err
	}
	compressor, err := compression.New(cfg.Compression)
	if err != nil {
		return nil, err
	}
	p := NewHTTPPoster(cfg.HTTP, codec, compressor)

	if cfg.Auth.Enabled() {
		authenticator, err := auth.NewAuthenticator(cfg.Auth)
		if err != nil {
			return nil, err
		}
		if p.Token, err = authenticator.GenerateToken(version.AppName, ""); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewHTTPClient builds the shared client used for every request of a run
func NewHTTPClient(cfg config.HTTPConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableKeepAlives = !cfg.KeepAlive
	if cfg.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}

// Post serializes body and POSTs it to url. Transport errors and non-2xx
// responses are returned as *types.RequestFailure; serialization errors as
// *types.ProbeError. Nothing is retried.
func (p *HTTPPoster) Post(ctx context.Context, url string, body interface{}) error {
	data, err := p.Codec.Marshal(body)
	if err != nil {
		return err
	}

	data, err = p.Compressor.Compress(data)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return &types.RequestFailure{URL: url, Cause: err}
	}
	httpReq.Header.Set("Content-Type", p.Codec.ContentType())
	if enc := p.Compressor.Name(); enc != "" {
		httpReq.Header.Set("Content-Encoding", enc)
	}
	if p.UserAgent != "" {
		httpReq.Header.Set("User-Agent", p.UserAgent)
	}
	if p.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.Token)
	}

	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return &types.RequestFailure{URL: url, Cause: transportError(err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &types.RequestFailure{URL: url, StatusCode: resp.StatusCode}
	}
	return nil
}

func transportError(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return types.ErrTimeout("post", err)
	}
	return types.ErrNetworkError("post", err)
}
