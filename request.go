package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tvshows/authclient/internal/authapi"
)

// Dispatch sends req through the dispatcher. The response body must be closed
// by the caller.
func (c *Client) Dispatch(req *http.Request) (*http.Response, error) {
	if c.closed.Load() {
		return nil, ErrClientNotReady
	}
	return c.httpClient.Do(req)
}

// Do sends a JSON request to path on the API origin and decodes a JSON
// response into out. A nil in sends no body; a nil out discards the response.
// Non-2xx responses are returned as *[APIError].
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.api.URL(path), body)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Dispatch(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := authapi.ReadStatusError(method+" "+path, resp)
		return &APIError{Method: method, Path: path, Status: se.Status, Message: se.Message}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
