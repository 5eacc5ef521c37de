package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Transport opens one underlying event stream. The client guarantees at most
// one open stream at a time.
type Transport interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// SSETransport connects to a server-sent-events endpoint. The session token
// rides as a query parameter because the EventSource-style transport cannot
// carry headers.
type SSETransport struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

func (t *SSETransport) Open(ctx context.Context) (io.ReadCloser, error) {
	streamURL, err := url.Parse(t.URL)
	if err != nil {
		return nil, err
	}
	query := streamURL.Query()
	if t.Token != "" {
		query.Set("token", t.Token)
	}
	streamURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	httpClient := t.HTTPClient
	if httpClient == nil {
		// No client timeout: the stream is expected to stay open.
		httpClient = &http.Client{}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
