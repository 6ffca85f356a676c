package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/54b3r/acrecall/internal/errs"
)

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 4 << 10

// apiError extracts a human-readable message from a failed response body.
type apiError func(body []byte) string

// postJSON sends in as JSON to url and decodes a 2xx response into out.
// Transport failures and non-2xx statuses carry CodeUpstreamCallFailed; an
// undecodable 2xx body carries CodeMalformedResponse.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, in, out any, describe apiError) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header = header.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errs.Wrap(err, errs.CodeUpstreamCallFailed, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := ""
		if describe != nil {
			msg = describe(body)
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return errs.Errorf(errs.CodeUpstreamCallFailed, "HTTP %d: %s", resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(err, errs.CodeMalformedResponse, "decode response")
	}
	return nil
}

// probe issues a GET to url and expects 200. It never reads the body.
func probe(ctx context.Context, client *http.Client, url string, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create probe: %w", err)
	}
	if header != nil {
		req.Header = header.Clone()
	}
	resp, err := client.Do(req)
	if err != nil {
		return errs.Wrap(err, errs.CodeProviderUnavailable, "probe failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errs.Errorf(errs.CodeProviderUnavailable, "probe returned HTTP %d", resp.StatusCode)
	}
	return nil
}
