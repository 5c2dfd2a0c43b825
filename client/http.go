package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	errorsmod "cosmossdk.io/errors"

	"QueryVerify/internal/api"
)

// maxResponseSize bounds response bodies read by the client.
const maxResponseSize = 64 << 20

// get performs a GET request and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, result any) error {
	body, _, err := c.getRaw(ctx, path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode GET %s:\n%w", path, err)
	}

	return nil
}

// getRaw performs a GET request and returns the body and headers.
func (c *Client) getRaw(ctx context.Context, path string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build GET %s:\n%w", path, err)
	}

	return c.do(req)
}

// post sends a signed instruction and decodes the JSON response.
func (c *Client) post(ctx context.Context, path string, env *api.Envelope, result any) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope:\n%w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build POST %s:\n%w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, _, err := c.do(req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode POST %s:\n%w", path, err)
	}

	return nil
}

// do runs req and turns error bodies back into registered errors.
func (c *Client) do(req *http.Request) ([]byte, http.Header, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s:\n%w", req.Method, req.URL.Path, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s %s:\n%w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, decodeError(req, resp.StatusCode, body)
	}

	return body, resp.Header, nil
}

// decodeError rebuilds the registered error carried by an error body.
func decodeError(req *http.Request, status int, body []byte) error {
	var e api.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Code == 0 {
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, status)
	}

	return errorsmod.ABCIError(e.Codespace, e.Code, e.Error)
}
