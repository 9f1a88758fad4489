package ozon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"sellerpilot/internal/types"
)

// transport issues one marketplace request and maps the outcome into a
// CallResult. Implementations never return a Go error; every HTTP-level
// failure becomes a CallResult with Success=false so the workers can classify
// the error text. The real transport talks to the Seller API; the mock
// transport serves canned payloads.
type transport interface {
	roundTrip(ctx context.Context, method, endpoint string, body any) *CallResult
}

// httpTransport is the production transport: JSON over HTTP with the
// Client-Id/Api-Key header pair, wrapped in a circuit breaker so a flapping
// upstream fails fast instead of burning the whole per-call timeout on every
// cycle. An open breaker surfaces as an ordinary transient failure.
type httpTransport struct {
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	baseURL  string
	clientID string
	apiKey   types.SecretString
}

func newHTTPTransport(baseURL string, clientID string, apiKey types.SecretString, timeout time.Duration) *httpTransport {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "seller-api:" + clientID,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &httpTransport{
		client:   &http.Client{Timeout: timeout},
		breaker:  cb,
		baseURL:  baseURL,
		clientID: clientID,
		apiKey:   apiKey,
	}
}

func (t *httpTransport) roundTrip(ctx context.Context, method, endpoint string, body any) *CallResult {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &CallResult{ErrorText: fmt.Sprintf("failed to encode request body: %v", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+endpoint, reader)
	if err != nil {
		return &CallResult{ErrorText: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Client-Id", t.clientID)
	req.Header.Set("Api-Key", t.apiKey.Unmask())

	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		r, doErr := t.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// 5xx trips the breaker; 4xx is the upstream answering normally.
		if r.StatusCode >= 500 {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err != nil {
		if resp == nil {
			return &CallResult{ErrorText: err.Error()}
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &CallResult{
			StatusCode: resp.StatusCode,
			ErrorText:  fmt.Sprintf("API request failed: %d - %s", resp.StatusCode, errorMessage(raw)),
		}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return &CallResult{StatusCode: resp.StatusCode, ErrorText: fmt.Sprintf("failed to read response body: %v", readErr)}
	}

	if resp.StatusCode >= 400 {
		return &CallResult{
			StatusCode: resp.StatusCode,
			ErrorText:  fmt.Sprintf("API request failed: %d - %s", resp.StatusCode, errorMessage(raw)),
		}
	}

	return &CallResult{Success: true, StatusCode: resp.StatusCode, Data: raw}
}

// maxErrorBodySize caps how much of an error body is read into the message.
const maxErrorBodySize = 8 << 10

// errorMessage pulls a human-readable message out of an upstream error body.
// The Seller API answers either {"message": ...} or {"error": {"message": ...}};
// anything else is passed through raw.
func errorMessage(raw []byte) string {
	var direct struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &direct); err == nil {
		if direct.Message != "" {
			return direct.Message
		}
		if direct.Error.Message != "" {
			return direct.Error.Message
		}
	}
	return string(raw)
}
