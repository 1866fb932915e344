package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tgstat-tools/tgstat-cli/internal/config"
	"github.com/tgstat-tools/tgstat-cli/internal/logger"
	"github.com/tgstat-tools/tgstat-cli/internal/models"
)

// APIClient handles all HTTP communication with the TGStat parser API
type APIClient struct {
	config     *config.Config
	httpClient *http.Client
}

// NewAPIClient creates a new API client with the given configuration
func NewAPIClient(cfg *config.Config) *APIClient {
	return &APIClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// BuildURL constructs a full URL for the given endpoint
func (c *APIClient) BuildURL(endpoint string) string {
	return fmt.Sprintf("%s/api%s", c.config.BaseURL, endpoint)
}

// Get makes a GET request to the specified endpoint
func (c *APIClient) Get(endpoint string, result interface{}) error {
	return c.request(http.MethodGet, endpoint, nil, result)
}

// Post makes a POST request to the specified endpoint
func (c *APIClient) Post(endpoint string, body interface{}, result interface{}) error {
	return c.request(http.MethodPost, endpoint, body, result)
}

// request is the core HTTP request method
func (c *APIClient) request(method, endpoint string, body interface{}, result interface{}) error {
	url := c.BuildURL(endpoint)
	start := time.Now()
	logger.Debug("Starting %s request to %s", method, url)

	var requestBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request body: %w", err)
		}
		requestBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, requestBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		logger.Debug("Request failed after (%s) %v: %v", url, elapsed, err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	logger.Debug("Request to %s completed in %v with status %d", url, elapsed, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		logger.Debug("%s: HTTP error %d: %s", url, resp.StatusCode, string(bodyBytes))
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			logger.Debug("%s: Error decoding response: %v", url, err)
			return fmt.Errorf("error decoding response: %w", err)
		}
	}

	return nil
}

// StartParsing submits a parsing job and returns the assigned task identifier
func (c *APIClient) StartParsing(request models.ParsingRequest) (string, error) {
	var response models.StartResponse
	if err := c.Post("/start-parsing", request, &response); err != nil {
		return "", fmt.Errorf("failed to start parsing: %w", err)
	}

	if response.TaskID == "" {
		return "", fmt.Errorf("backend returned an empty task id")
	}

	logger.Debug("Parsing task %s started: %s", response.TaskID, response.Message)
	return response.TaskID, nil
}

// ParsingStatus fetches the current status snapshot of a task
func (c *APIClient) ParsingStatus(taskID string) (*models.StatusResponse, error) {
	var response models.StatusResponse
	endpoint := fmt.Sprintf("/parsing-status/%s", url.PathEscape(taskID))
	if err := c.Get(endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch status for task %s: %w", taskID, err)
	}

	return &response, nil
}

// ParsingResults fetches the finalized result collection of a completed task
func (c *APIClient) ParsingResults(taskID string) ([]models.ResultRecord, error) {
	var response models.ResultsResponse
	endpoint := fmt.Sprintf("/parsing-results/%s", url.PathEscape(taskID))
	if err := c.Get(endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch results for task %s: %w", taskID, err)
	}

	return response.Results, nil
}

// ExportResults downloads the server-rendered export artifact for a task
// and returns its bytes plus the filename announced by the server.
func (c *APIClient) ExportResults(taskID string) ([]byte, string, error) {
	exportURL := c.BuildURL(fmt.Sprintf("/export-results/%s", url.PathEscape(taskID)))
	logger.Debug("Downloading export artifact from %s", exportURL)

	resp, err := c.httpClient.Get(exportURL)
	if err != nil {
		return nil, "", fmt.Errorf("export request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("error reading export body: %w", err)
	}

	return data, exportFilename(resp.Header.Get("Content-Disposition"), taskID), nil
}

// exportFilename extracts the attachment filename from a
// Content-Disposition header, falling back to a task-derived name.
func exportFilename(disposition, taskID string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := filepath.Base(params["filename"]); name != "" && name != "." && name != string(filepath.Separator) {
				return name
			}
		}
	}
	return fmt.Sprintf("tgstat_results_%s.txt", taskID)
}

// Ping checks if the API is ready
func (c *APIClient) Ping() error {
	url := c.BuildURL("/")
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping failed with status %d", resp.StatusCode)
	}

	return nil
}

// WaitForAPIReady waits for the API to become ready
func (c *APIClient) WaitForAPIReady(maxAttempts int) bool {
	logger.Info("Checking API readiness...")

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.Ping(); err == nil {
			logger.Info("API is ready!")
			return true
		}

		logger.Debug("API not ready (attempt %d/%d)", attempt, maxAttempts)
		time.Sleep(time.Second)
	}

	logger.Error("API failed to become ready after %d attempts", maxAttempts)
	return false
}
