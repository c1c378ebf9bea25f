package spotify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

const (
	defaultUserAgent = "tagplayer/0.1"
	requestTimeout   = 10 * time.Second
	maxBodyBytes     = 1 << 20
)

// Request is one outbound HTTP exchange.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Caller performs a single request. It never returns an error: a request that
// produced no response yields an Outcome with StatusTransportFailure.
type Caller interface {
	Call(ctx context.Context, req Request) Outcome
}

// Ensure HTTPCaller implements Caller at compile time.
var _ Caller = (*HTTPCaller)(nil)

// HTTPCaller is the net/http backed Caller.
type HTTPCaller struct {
	http      *http.Client
	userAgent string
}

// NewHTTPCaller builds a caller with the given per-request timeout.
func NewHTTPCaller(timeout time.Duration) *HTTPCaller {
	if timeout <= 0 {
		timeout = requestTimeout
	}
	return &HTTPCaller{
		http:      &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
	}
}

// Call executes req and returns its status and body.
func (c *HTTPCaller) Call(ctx context.Context, req Request) Outcome {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Outcome{Status: StatusTransportFailure}
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Outcome{Status: StatusTransportFailure}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		// The status line arrived; a truncated body decodes as absent fields.
		return Outcome{Status: resp.StatusCode}
	}
	return Outcome{Status: resp.StatusCode, Body: data}
}
