// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package glow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	gerrors "github.com/soothill/glow-data-logger/pkg/errors"
	"github.com/soothill/glow-data-logger/pkg/logger"
	"github.com/soothill/glow-data-logger/pkg/metrics"
)

const (
	headerApplicationID = "applicationId"
	headerToken         = "token"
	contentTypeJSON     = "application/json"
)

// post sends a JSON POST to the given URL. The applicationId header is always
// set; the token header is set when token is non-empty. Every request shape
// the service accepts is a POST, including plain fetches.
//
// Transport failures and non-2xx statuses are logged here and surfaced as an
// absent (nil) body, never as an error. Callers decide whether absence is
// fatal; only the authentication path promotes it to a raised error.
//
// The returned content type is the response's declared Content-Type. When it
// is not JSON the raw bytes are returned unchanged for the caller to handle.
func (c *Client) post(ctx context.Context, endpoint, url, token string, body any) ([]byte, string) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Rate limiter wait aborted")
			return nil, ""
		}
	}

	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			logger.Error().Err(err).Str("endpoint", endpoint).Msg("Failed to marshal request body")
			return nil, ""
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		logger.Error().Err(err).Str("endpoint", endpoint).Msg("Failed to create request")
		return nil, ""
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set(headerApplicationID, c.creds.AppID)
	if token != "" {
		req.Header.Set(headerToken, token)
	}

	metrics.APIRequestsTotal.WithLabelValues(endpoint).Inc()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APIRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequestErrors.WithLabelValues(endpoint).Inc()
		logger.Error().Err(err).Str("endpoint", endpoint).Msg("Request failed")
		return nil, ""
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.APIRequestErrors.WithLabelValues(endpoint).Inc()
		logger.Error().
			Int("code", resp.StatusCode).
			Str("reason", resp.Status).
			Str("endpoint", endpoint).
			Msg("Request rejected")
		return nil, ""
	}

	data, err := readAll(resp)
	if err != nil {
		metrics.APIRequestErrors.WithLabelValues(endpoint).Inc()
		logger.Error().Err(err).Str("endpoint", endpoint).Msg("Failed to read response body")
		return nil, ""
	}

	return data, resp.Header.Get("Content-Type")
}

// readAll drains the response body.
func readAll(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeJSON applies the documented response policy to a transport result:
// an absent body or a body the service declared as non-JSON cannot satisfy a
// typed accessor, so both fail fast with a descriptive error.
func decodeJSON(op string, data []byte, contentType string, v any) error {
	if len(data) == 0 {
		return gerrors.NewResourceError(op, "", "", gerrors.ErrEmptyResponse)
	}
	if contentType != "" && !strings.Contains(contentType, contentTypeJSON) {
		return gerrors.NewResourceError(op, "", "",
			fmt.Errorf("%w: unexpected content type %q", gerrors.ErrMalformedResponse, contentType))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return gerrors.NewResourceError(op, "", "",
			fmt.Errorf("%w: %v", gerrors.ErrMalformedResponse, err))
	}
	return nil
}
