package llamaparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"paperchat/internal/apperr"
	"paperchat/internal/text"
)

const defaultBaseURL = "https://api.cloud.llamaindex.ai"

// Client drives the LlamaCloud parsing API: upload the PDF, poll the job,
// fetch the per-page JSON result.
type Client struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 60 * time.Second},
		pollInterval: 2 * time.Second,
		pollTimeout:  3 * time.Minute,
	}
}

// SetPolling overrides the job polling cadence, used by tests.
func (c *Client) SetPolling(interval, timeout time.Duration) {
	c.pollInterval = interval
	c.pollTimeout = timeout
}

// Parse uploads the PDF and blocks until the parse job finishes, returning
// one Page per document page.
func (c *Client) Parse(ctx context.Context, filename string, pdf []byte) ([]text.Page, error) {
	jobID, err := c.upload(ctx, filename, pdf)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "parse job submitted", "job_id", jobID)

	if err := c.awaitJob(ctx, jobID); err != nil {
		return nil, err
	}
	return c.fetchResult(ctx, jobID)
}

func (c *Client) upload(ctx context.Context, filename string, pdf []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(pdf); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/parsing/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindNetwork, "parse upload failed", err)
	}
	defer resp.Body.Close()

	if err := c.statusError(resp, "parse upload"); err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("parse upload response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("parse upload returned no job id")
	}
	return result.ID, nil
}

func (c *Client) awaitJob(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.jobStatus(ctx, jobID)
		if err != nil {
			return err
		}
		switch status {
		case "SUCCESS":
			return nil
		case "ERROR", "CANCELED":
			return fmt.Errorf("parse job %s failed with status %s", jobID, status)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return apperr.Wrap(apperr.KindNetwork, "parse job timed out", ctx.Err())
		}
	}
}

func (c *Client) jobStatus(ctx context.Context, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/parsing/job/"+jobID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindNetwork, "parse job poll failed", err)
	}
	defer resp.Body.Close()

	if err := c.statusError(resp, "parse job poll"); err != nil {
		return "", err
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("parse job poll response: %w", err)
	}
	return result.Status, nil
}

func (c *Client) fetchResult(ctx context.Context, jobID string) ([]text.Page, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/parsing/job/"+jobID+"/result/json", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "parse result fetch failed", err)
	}
	defer resp.Body.Close()

	if err := c.statusError(resp, "parse result fetch"); err != nil {
		return nil, err
	}

	var result struct {
		Pages []struct {
			Page int    `json:"page"`
			Text string `json:"text"`
			Md   string `json:"md"`
		} `json:"pages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse result response: %w", err)
	}
	if len(result.Pages) == 0 {
		return nil, fmt.Errorf("parse job %s returned no pages", jobID)
	}

	pages := make([]text.Page, 0, len(result.Pages))
	for i, p := range result.Pages {
		number := p.Page
		if number <= 0 {
			number = i + 1
		}
		// Markdown keeps table and heading structure the plain text drops.
		content := p.Md
		if content == "" {
			content = p.Text
		}
		pages = append(pages, text.Page{Number: number, Text: content})
	}
	return pages, nil
}

func (c *Client) statusError(resp *http.Response, op string) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperr.Wrap(apperr.KindRateLimited, op, err)
	case resp.StatusCode >= 500:
		return apperr.Wrap(apperr.KindOverloaded, op, err)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperr.Wrap(apperr.KindValidation, op, err)
	default:
		return apperr.Wrap(apperr.KindInternal, op, err)
	}
}
