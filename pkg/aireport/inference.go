package aireport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mapdr-ai/platform/pkg/common/httpclient"
	"github.com/mapdr-ai/platform/pkg/common/models"
)

// InferenceClient calls the model-serving backend that owns the actual
// network weights and Grad-CAM rendering. This service only brokers bytes
// and records results.
type InferenceClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewInferenceClient(baseURL string, timeout time.Duration) *InferenceClient {
	return &InferenceClient{
		baseURL:    baseURL,
		httpClient: httpclient.New(timeout),
	}
}

type inferenceRequest struct {
	ModelPath  string   `json:"model_path"`
	ClassNames []string `json:"class_names"`
	ImageB64   string   `json:"image_b64"`
}

// Predict runs one frame through the backend and returns the structured
// prediction plus the rendered heatmap and source dimensions.
func (c *InferenceClient) Predict(ctx context.Context, modelPath string, classNames []string, imageBytes []byte) (*models.PredictionResponse, error) {
	body, err := json.Marshal(inferenceRequest{
		ModelPath:  modelPath,
		ClassNames: classNames,
		ImageB64:   base64.StdEncoding.EncodeToString(imageBytes),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding inference request: %w", err)
	}

	// Transient transport failures are retried; the request is rebuilt per
	// attempt because the body reader is consumed on each send.
	var resp *http.Response
	reqErr := httpclient.Retry(ctx, 3, 200*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		var doErr error
		resp, doErr = c.httpClient.Do(req)
		if doErr != nil && httpclient.IsRetriable(doErr) {
			return doErr
		}
		return doErr
	})
	if reqErr != nil {
		return nil, fmt.Errorf("calling inference backend: %w", reqErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("inference backend: status %d: %s", resp.StatusCode, string(excerpt))
	}

	var prediction models.PredictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("decoding inference response: %w", err)
	}
	return &prediction, nil
}
