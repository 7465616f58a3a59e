// Package jsonrpclink talks to a host that serves JSON-RPC 2.0 over HTTP.
// Every call completes inside Send, so the transport works with both
// Manager.Invoke and Manager.InvokeSync.
package jsonrpclink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"go.uber.org/zap"

	"github.com/mrjvadi/go-native-bridge/bridge"
)

type Transport struct {
	url    string
	client *http.Client
	header http.Header
	logger *zap.Logger
}

var _ bridge.Transport = (*Transport)(nil)

type Option func(*Transport)

func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(t *Transport) {
		t.header.Add(key, value)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

func NewTransport(url string, opts ...Option) *Transport {
	t := &Transport{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		header: make(http.Header),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send posts req and returns the host's answer as an immediate Response.
// JSON-RPC errors become failed Responses; anything else is a transport error.
func (t *Transport) Send(ctx context.Context, req *bridge.Request) (bridge.Return, error) {
	body, err := json2.EncodeClientRequest(req.Method, req.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode client params: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range t.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to issue request: %w", err)
	}
	defer cleanlyCloseBody(resp.Body)

	var result json.RawMessage
	err = json2.DecodeClientResponse(resp.Body, &result)
	var rpcErr *json2.Error
	switch {
	case err == nil:
		return bridge.Immediate(&bridge.Response{ID: req.ID, OK: true, Result: result}), nil
	case errors.Is(err, json2.ErrNullResult):
		return bridge.Immediate(&bridge.Response{ID: req.ID, OK: true, Result: json.RawMessage("null")}), nil
	case errors.As(err, &rpcErr):
		t.logger.Debug("host returned error",
			zap.String("method", req.Method), zap.Int("code", int(rpcErr.Code)), zap.String("message", rpcErr.Message))
		return bridge.Immediate(bridge.Failure(req.ID, errorShape(rpcErr))), nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("received status code: %d", resp.StatusCode)
	default:
		return nil, fmt.Errorf("failed to decode client response: %w", err)
	}
}

func errorShape(e *json2.Error) bridge.ErrorShape {
	shape := bridge.ErrorShape{Message: e.Message, Code: strconv.Itoa(int(e.Code))}
	if e.Data != nil {
		if b, err := json.Marshal(e.Data); err == nil {
			shape.Data = b
		}
	}
	return shape
}

// cleanlyCloseBody drains the body so the connection can be reused.
func cleanlyCloseBody(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
