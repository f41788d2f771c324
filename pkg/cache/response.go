package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Response is the captured shape of an upstream HTTP exchange: what the
// cache persists and what it serves back in place of a live call.
type Response struct {
	// StatusCode is the HTTP status of the exchange.
	StatusCode int `json:"status_code"`

	// Header holds the response headers.
	Header http.Header `json:"header,omitempty"`

	// Body is the response body.
	Body []byte `json:"body,omitempty"`
}

// Status returns the response status, normalizing a missing or zero status
// to 500 so a half-fetched exchange is recorded as a server failure.
func (r *Response) Status() int {
	if r == nil || r.StatusCode == 0 {
		return http.StatusInternalServerError
	}
	return r.StatusCode
}

// Storable reports whether the response body may overwrite a previously
// cached payload. Only the 2xx class is storable.
func (r *Response) Storable() bool {
	status := r.Status()
	return status >= 200 && status < 300
}

// Encode serializes the response into an opaque payload blob.
func (r *Response) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResponse restores a payload blob written by Encode.
func DecodeResponse(data []byte) (*Response, error) {
	var res Response
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	return &res, nil
}

// FromHTTP converts an *http.Response into a Response, reading the body.
// The body is restored on the original response so callers can still
// consume it.
func FromHTTP(res *http.Response) (*Response, error) {
	if res == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if res.Body != nil {
		var err error
		body, err = io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		res.Body.Close()
		res.Body = io.NopCloser(bytes.NewReader(body))
	}

	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header.Clone(),
		Body:       body,
	}, nil
}
