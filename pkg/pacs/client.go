package pacs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mapdr-ai/platform/pkg/common/httpclient"
	"github.com/mapdr-ai/platform/pkg/common/logger"
)

const contentTypeDICOM = "application/dicom"

// Client talks to an Orthanc-compatible archive over its REST API with
// fixed basic-auth credentials.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	pollAttempts int
	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// SubmitResult is the archive's response to an instance submission. Only
// ParentStudy is consumed downstream, and only for the first item of a batch.
type SubmitResult struct {
	ID           string `json:"ID"`
	ParentStudy  string `json:"ParentStudy"`
	ParentSeries string `json:"ParentSeries"`
	Status       string `json:"Status"`
}

func NewClient(baseURL, username, password string, timeout time.Duration, pollAttempts int, pollInterval time.Duration) *Client {
	return &Client{
		baseURL:      baseURL,
		username:     username,
		password:     password,
		httpClient:   httpclient.New(timeout),
		pollAttempts: pollAttempts,
		pollInterval: pollInterval,
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request %s %s: %w", method, path, err)
	}
	req.SetBasicAuth(c.username, c.password)
	return req, nil
}

// Submit posts one raw DICOM object to the archive. Any non-2xx response is
// a hard failure for the item being submitted.
func (c *Client) Submit(ctx context.Context, dicomBytes []byte) (*SubmitResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/instances", bytes.NewReader(dicomBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentTypeDICOM)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitting instance to archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("archive rejected instance: status %d: %s", resp.StatusCode, string(excerpt))
	}

	var result SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding archive submit response: %w", err)
	}
	return &result, nil
}

// WaitForStudy polls the archive until it acknowledges the study, for at
// most the configured attempt budget. Returning false is not an error:
// archive indexing latency must never fail an otherwise-successful ingest.
func (c *Client) WaitForStudy(ctx context.Context, archiveStudyID string) bool {
	for i := 0; i < c.pollAttempts; i++ {
		ready, err := c.studyExists(ctx, archiveStudyID)
		if err != nil {
			logger.Log.WithError(err).WithField("archive_study_id", archiveStudyID).Warn("archive readiness poll failed")
		}
		if ready {
			return true
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return false
		}
	}
	return false
}

func (c *Client) studyExists(ctx context.Context, archiveStudyID string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/studies/"+archiveStudyID, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("querying study %s: %w", archiveStudyID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

// InstanceFrame retrieves one rendered frame of an instance: the SOP
// Instance UID is first resolved to the archive's internal identifier, then
// the per-frame preview endpoint is fetched. frameNumber is 0-based.
// Returns image bytes and their content type.
func (c *Client) InstanceFrame(ctx context.Context, sopInstanceUID string, frameNumber int) ([]byte, string, error) {
	if frameNumber < 0 {
		return nil, "", fmt.Errorf("invalid frame number %d", frameNumber)
	}

	internalID, err := c.lookupInstance(ctx, sopInstanceUID)
	if err != nil {
		return nil, "", err
	}

	path := fmt.Sprintf("/instances/%s/frames/%d/preview", internalID, frameNumber)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching preview for instance %s: %w", sopInstanceUID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", fmt.Errorf("archive preview for %s: status %d: %s", sopInstanceUID, resp.StatusCode, string(excerpt))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading preview body for %s: %w", sopInstanceUID, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

func (c *Client) lookupInstance(ctx context.Context, sopInstanceUID string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/tools/lookup", bytes.NewReader([]byte(sopInstanceUID)))
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("looking up instance %s: %w", sopInstanceUID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("archive lookup for %s: status %d", sopInstanceUID, resp.StatusCode)
	}

	var matches []struct {
		ID   string `json:"ID"`
		Type string `json:"Type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		return "", fmt.Errorf("decoding lookup response for %s: %w", sopInstanceUID, err)
	}
	for _, m := range matches {
		if m.Type == "Instance" {
			return m.ID, nil
		}
	}
	return "", fmt.Errorf("instance %s not found in archive", sopInstanceUID)
}
