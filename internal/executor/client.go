// Package executor runs a room's document on a Piston-compatible execution
// service.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultURL is the public Piston execute endpoint.
const DefaultURL = "https://emkc.org/api/v2/piston/execute"

// FallbackMessage is reported when a failure carries no usable message.
const FallbackMessage = "Compilation failed"

var ErrExecutionFailed = errors.New("execution failed")

type Request struct {
	Language string
	Version  string
	Code     string
	Stdin    string
}

type Stage struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Output string  `json:"output"`
	Code   *int    `json:"code"`
	Signal *string `json:"signal"`
}

// Result is the service's response, relayed to clients as is.
type Result struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Run      Stage  `json:"run"`
	Compile  *Stage `json:"compile,omitempty"`
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("execution service returned %d", e.Status)
	}
	return fmt.Sprintf("execution service returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return ErrExecutionFailed }

// Message picks the text shown to users for err.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return FallbackMessage
}

type Client struct {
	url  string
	http *http.Client
	log  *zap.Logger
}

func NewClient(url string, timeout time.Duration, log *zap.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

type file struct {
	Content string `json:"content"`
}

type executeRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Files    []file `json:"files"`
	Stdin    string `json:"stdin"`
}

// Execute makes a single call; failures are not retried.
func (c *Client) Execute(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(executeRequest{
		Language: req.Language,
		Version:  req.Version,
		Files:    []file{{Content: req.Code}},
		Stdin:    req.Stdin,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %v", ErrExecutionFailed, err)
	}

	c.log.Debug("execution finished",
		zap.String("language", req.Language),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payload, &body)
		return Result{}, &APIError{Status: resp.StatusCode, Message: body.Message}
	}

	var decoded struct {
		Result
		Run *Stage `json:"run"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrExecutionFailed, err)
	}
	if decoded.Run == nil {
		return Result{}, fmt.Errorf("%w: response has no run stage", ErrExecutionFailed)
	}

	result := decoded.Result
	result.Run = *decoded.Run
	return result, nil
}
