package cache

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResponseStatus(t *testing.T) {
	tests := []struct {
		name string
		res  *Response
		want int
	}{
		{"nil response", nil, http.StatusInternalServerError},
		{"zero status", &Response{}, http.StatusInternalServerError},
		{"ok", &Response{StatusCode: 200}, 200},
		{"not found", &Response{StatusCode: 404}, 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Status(); got != tt.want {
				t.Errorf("Status() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResponseStorable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, true},
		{201, true},
		{204, true},
		{299, true},
		{300, false},
		{304, false},
		{404, false},
		{500, false},
		{0, false},
	}

	for _, tt := range tests {
		res := &Response{StatusCode: tt.status}
		if got := res.Storable(); got != tt.want {
			t.Errorf("Storable() with status %d = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestResponseEncodeDecode(t *testing.T) {
	original := &Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       []byte(`{"name":"test"}`),
	}

	payload, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	decoded, err := DecodeResponse(payload)
	if err != nil {
		t.Fatalf("DecodeResponse() error: %v", err)
	}

	if decoded.StatusCode != original.StatusCode {
		t.Errorf("StatusCode = %d, want %d", decoded.StatusCode, original.StatusCode)
	}
	if got := decoded.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want %q", got, "application/json")
	}
	if string(decoded.Body) != string(original.Body) {
		t.Errorf("Body = %q, want %q", decoded.Body, original.Body)
	}
}

func TestDecodeResponseCorrupt(t *testing.T) {
	_, err := DecodeResponse([]byte("{not json"))
	if err == nil {
		t.Fatal("expected error for corrupt payload")
	}
	if !errors.Is(err, ErrCorruptPayload) {
		t.Errorf("error = %v, want ErrCorruptPayload", err)
	}
}

func TestFromHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	httpRes, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("http.Get error: %v", err)
	}
	defer httpRes.Body.Close()

	res, err := FromHTTP(httpRes)
	if err != nil {
		t.Fatalf("FromHTTP() error: %v", err)
	}
	if res.StatusCode != http.StatusAccepted {
		t.Errorf("StatusCode = %d, want %d", res.StatusCode, http.StatusAccepted)
	}
	if got := res.Header.Get("X-Test"); got != "yes" {
		t.Errorf("X-Test header = %q, want %q", got, "yes")
	}
	if string(res.Body) != "hello" {
		t.Errorf("Body = %q, want %q", res.Body, "hello")
	}

	// body must still be readable on the original response
	rest, err := io.ReadAll(httpRes.Body)
	if err != nil {
		t.Fatalf("re-read body error: %v", err)
	}
	if string(rest) != "hello" {
		t.Errorf("restored body = %q, want %q", rest, "hello")
	}
}

func TestFromHTTPNil(t *testing.T) {
	if _, err := FromHTTP(nil); err == nil {
		t.Fatal("expected error for nil response")
	}
}

func TestFromHTTPEmptyBody(t *testing.T) {
	res, err := FromHTTP(&http.Response{
		StatusCode: 204,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
	})
	if err != nil {
		t.Fatalf("FromHTTP() error: %v", err)
	}
	if len(res.Body) != 0 {
		t.Errorf("Body length = %d, want 0", len(res.Body))
	}
}
