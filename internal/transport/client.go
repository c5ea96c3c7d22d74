package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/opencoreai/turnengine/internal/content"
)

const (
	connectTimeout = 30 * time.Second
	totalTimeout   = 300 * time.Second
)

// Sink receives text deltas as they stream in, for echoing to a
// user-visible surface. A nil Sink means no echoing.
type Sink interface {
	WriteDelta(text string)
}

// Client issues chat requests against an Anthropic-compatible messages
// endpoint and assembles the streamed response.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a Client with spec-mandated 30s connect / 300s total
// timeouts (spec §4.B).
func NewClient(apiURL, apiKey string) *Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: connectTimeout,
	}
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout:   totalTimeout,
			Transport: transport,
		},
	}
}

// Result is the outcome of one successful streaming call.
type Result struct {
	Blocks     []content.ContentBlock
	StopReason content.StopReason
	Usage      content.Usage
}

// Send issues one streaming request and assembles the response. On error it
// always returns an ErrorKind (HTTPError, StreamTransientError,
// StreamParseError, TransportError, or EncodingError) so the caller can
// classify without further type assertions on the underlying cause.
func (c *Client) Send(ctx context.Context, req Request, sink Sink) (*Result, error) {
	req.Stream = true
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &EncodingError{Inner: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Class: TransportOther, Inner: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("anthropic-version", apiVersion)
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &HTTPError{
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("retry-after")),
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return c.consume(resp.Body, sink)
}

func (c *Client) consume(body io.Reader, sink Sink) (*Result, error) {
	framer := newFrameReader(body)
	acc := newAccumulator()

	for {
		raw, err := framer.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, classifyTransportErr(err)
		}
		if raw == "" || raw == "[DONE]" {
			continue
		}

		var e event
		if unmarshalErr := json.Unmarshal([]byte(raw), &e); unmarshalErr != nil {
			return nil, &EncodingError{Inner: unmarshalErr}
		}

		if e.Type == "content_block_delta" && e.Delta != nil && e.Delta.Type == "text_delta" && sink != nil {
			sink.WriteDelta(e.Delta.Text)
		}

		if applyErr := acc.Apply(e); applyErr != nil {
			return nil, applyErr
		}
		if e.Type == "message_stop" {
			break
		}
	}

	blocks, stopReason, usage, sawStop := acc.Result()
	if !sawStop {
		return nil, &StreamTransientError{Detail: "stream ended without a stop_reason"}
	}
	return &Result{Blocks: blocks, StopReason: stopReason, Usage: usage}, nil
}

// parseRetryAfter parses a retry-after header as integer seconds. A parse
// failure is treated as absent (-1), per spec §4.B.
func parseRetryAfter(raw string) int {
	if raw == "" {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return -1
	}
	return n
}

// classifyTransportErr maps a low-level network error into a TransportError,
// distinguishing timeout/connect-failure (transient per spec §4.C) from
// everything else (permanent).
func classifyTransportErr(err error) *TransportError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Class: TransportTimeout, Inner: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &TransportError{Class: TransportConnect, Inner: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return &TransportError{Class: TransportConnect, Inner: err}
	}
	return &TransportError{Class: TransportOther, Inner: err}
}
