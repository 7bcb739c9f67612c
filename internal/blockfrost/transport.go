package blockfrost

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

type exchangeKey struct{}

// exchange is what the transport saw of the last response inside one call.
// The SDK's own errors do not carry the status reliably across versions.
type exchange struct {
	status int
	body   []byte
}

func withExchange(ctx context.Context) (context.Context, *exchange) {
	ex := &exchange{}
	return context.WithValue(ctx, exchangeKey{}, ex), ex
}

func (e *exchange) ok() bool { return e.status >= 200 && e.status < 300 }

func (e *exchange) apiError() *APIError {
	apiErr := &APIError{}
	_ = json.Unmarshal(e.body, apiErr)
	apiErr.StatusCode = e.status
	return apiErr
}

// recordingTransport copies status and error bodies into the call's
// exchange and hands the SDK an unread body.
type recordingTransport struct {
	next http.RoundTripper
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	ex, _ := req.Context().Value(exchangeKey{}).(*exchange)
	if ex == nil {
		return resp, nil
	}
	ex.status = resp.StatusCode
	if ex.ok() {
		return resp, nil
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	ex.body = data
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}
