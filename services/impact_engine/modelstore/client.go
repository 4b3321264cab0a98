// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package modelstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"

	"github.com/AleutianAI/CarbonFrame/pkg/validation"
	"github.com/AleutianAI/CarbonFrame/services/impact_engine/datatypes"
)

const (
	// DefaultTimeout bounds one store request. The engine never retries,
	// so a hung request would otherwise stall the whole run.
	DefaultTimeout = 60 * time.Second

	// minStoreAPIVersion is the oldest store API this client can talk to.
	minStoreAPIVersion = "v1.0.0"

	// DefaultMaxResponseBytes caps how much of a store response the
	// client will read. Model graphs with tens of thousands of elements
	// fit comfortably under this.
	DefaultMaxResponseBytes = 64 << 20

	// errorBodyLimit caps how much of an error response body is carried
	// into error messages.
	errorBodyLimit = 4096

	defaultUserAgent = "CarbonFrame-ImpactEngine/1.0"
)

// configValidate is the package-level validator for client configuration.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
}

// HTTPDoer is the slice of *http.Client the store client depends on.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the model store client.
//
// # Fields
//
//   - BaseURL: Store endpoint, scheme and host (e.g. "https://models.example.com").
//   - Token: Bearer token for store authentication.
//   - Timeout: Per-request timeout. Zero means DefaultTimeout.
//   - UserAgent: User-Agent header value. Empty means the package default.
//   - MaxResponseBytes: Response read cap. Zero means DefaultMaxResponseBytes.
//   - HTTPClient: Transport override. Nil means a default *http.Client.
//   - Logger: Structured logger. Nil means slog.Default().
type ClientConfig struct {
	BaseURL          string `validate:"required,url"`
	Token            string `validate:"required"`
	Timeout          time.Duration
	UserAgent        string
	MaxResponseBytes int64
	HTTPClient       HTTPDoer
	Logger           *slog.Logger
}

// Validate checks the configuration against its constraints.
func (c ClientConfig) Validate() error {
	return configValidate.Struct(c)
}

// EnsureDefaults fills zero-valued optional fields with package defaults.
func (c *ClientConfig) EnsureDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client talks to the model store over HTTP.
//
// # Description
//
// Client fetches model graphs and reference datasets and publishes
// modified graphs as new model versions. The bearer token lives in an
// encrypted memguard enclave and is only decrypted for the moment a
// request is signed. Every operation is a single attempt; the caller
// decides whether a failed run is re-triggered.
//
// # Thread Safety
//
// Client is safe for concurrent use.
type Client struct {
	baseURL          string
	token            *memguard.Enclave
	httpClient       HTTPDoer
	logger           *slog.Logger
	userAgent        string
	maxResponseBytes int64
}

// NewClient creates a model store client from the given configuration.
//
// # Inputs
//
//   - cfg: Client configuration. BaseURL and Token are required.
//
// # Outputs
//
//   - *Client: The client instance.
//   - error: Non-nil if the configuration is invalid or the system
//     cannot lock enough memory for the token enclave (override with
//     CARBONFRAME_INSECURE_MEMORY=true).
//
// # Example
//
//	client, err := modelstore.NewClient(modelstore.ClientConfig{
//	    BaseURL: os.Getenv("MODEL_STORE_URL"),
//	    Token:   os.Getenv("MODEL_STORE_TOKEN"),
//	})
func NewClient(cfg ClientConfig) (*Client, error) {
	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// Token lives in a memguard enclave; locked pages must be available.
	if err := checkSecureMemory(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		token:            memguard.NewEnclave([]byte(cfg.Token)),
		httpClient:       httpClient,
		logger:           cfg.Logger,
		userAgent:        cfg.UserAgent,
		maxResponseBytes: cfg.MaxResponseBytes,
	}, nil
}

// FetchModel retrieves the latest version of a model with its structural
// subtrees located.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout. Must not be nil.
//   - projectID: Project the model belongs to.
//   - modelID: Model to fetch.
//
// # Outputs
//
//   - *ModelSnapshot: Graph plus store metadata.
//   - error: ErrInvalidInput, ErrNotFound, ErrUnauthorized, or a wrapped
//     transport or decode error.
func (c *Client) FetchModel(ctx context.Context, projectID, modelID string) (*ModelSnapshot, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if err := validation.ValidateResourceIDs(projectID, modelID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/models/%s", c.baseURL, projectID, modelID)
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var env modelEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.maxResponseBytes)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if env.Graph == nil {
		return nil, fmt.Errorf("model response carries no graph")
	}

	c.logger.Debug("Fetched model from store",
		"model_id", env.Model.ID,
		"version_id", env.Model.VersionID,
		"subtrees", len(env.Graph.Subtrees),
	)

	return &ModelSnapshot{
		ModelID:   env.Model.ID,
		ModelName: env.Model.Name,
		VersionID: env.Model.VersionID,
		Graph:     env.Graph,
	}, nil
}

// FetchReferenceTable retrieves a reference dataset as raw JSON.
//
// # Description
//
// Reference tables arrive in more than one shape depending on how they
// were uploaded, so the client hands the raw bytes to the reference
// parser instead of decoding here.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout. Must not be nil.
//   - projectID: Project the table belongs to.
//   - tableID: Reference table to fetch.
//
// # Outputs
//
//   - []byte: The raw dataset payload.
//   - error: ErrInvalidInput, ErrNotFound, ErrUnauthorized, or a wrapped
//     transport error.
func (c *Client) FetchReferenceTable(ctx context.Context, projectID, tableID string) ([]byte, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if err := validation.ValidateResourceIDs(projectID, tableID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/tables/%s", c.baseURL, projectID, tableID)
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read reference table: %w", err)
	}

	c.logger.Debug("Fetched reference table from store",
		"table_id", tableID,
		"bytes", len(body),
	)

	return body, nil
}

// PublishVersion creates a new model version from a modified graph.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout. Must not be nil.
//   - projectID: Project the model belongs to.
//   - modelID: Model to publish under.
//   - graph: The graph to publish. Must not be nil.
//   - message: Version message shown alongside the new version.
//
// # Outputs
//
//   - string: Identifier of the created version.
//   - error: ErrInvalidInput, ErrNotFound, ErrUnauthorized, or a wrapped
//     transport or decode error.
func (c *Client) PublishVersion(ctx context.Context, projectID, modelID string, graph *datatypes.ModelGraph, message string) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if graph == nil {
		return "", fmt.Errorf("%w: graph must not be nil", ErrInvalidInput)
	}
	if err := validation.ValidateResourceIDs(projectID, modelID); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	body, err := json.Marshal(publishRequest{Graph: graph, Message: message})
	if err != nil {
		return "", fmt.Errorf("encode publish request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/models/%s/versions", c.baseURL, projectID, modelID)
	resp, err := c.do(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return "", err
	}

	var pub publishResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.maxResponseBytes)).Decode(&pub); err != nil {
		return "", fmt.Errorf("decode publish response: %w", err)
	}
	if pub.VersionID == "" {
		return "", fmt.Errorf("publish response carries no version id")
	}

	c.logger.Debug("Published model version",
		"model_id", modelID,
		"version_id", pub.VersionID,
	)

	return pub.VersionID, nil
}

// Ping checks if the model store is reachable, accepts our token, and
// speaks a supported API version.
func (c *Client) Ping(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}

	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}

	var health healthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.maxResponseBytes)).Decode(&health); err != nil {
		// Older stores answer with a bare 200.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode health response: %w", err)
	}

	return checkAPIVersion(health.APIVersion)
}

// checkAPIVersion verifies the store's reported API version against the
// minimum this client supports. An empty version is accepted; stores
// predating version reporting omit the field.
func checkAPIVersion(version string) error {
	if version == "" {
		return nil
	}

	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: store reports malformed api version %q", ErrIncompatibleStore, version)
	}
	if semver.Compare(v, minStoreAPIVersion) < 0 {
		return fmt.Errorf("%w: store api version %s is below minimum %s", ErrIncompatibleStore, v, minStoreAPIVersion)
	}
	return nil
}

// BaseURL returns the configured store endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do builds, signs, and executes one request. Single attempt.
func (c *Client) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	return resp, nil
}

// authorize signs a request with the enclave-held token. The decrypted
// token exists only for the duration of this call.
func (c *Client) authorize(req *http.Request) error {
	buf, err := c.token.Open()
	if err != nil {
		return fmt.Errorf("open token enclave: %w", err)
	}
	defer buf.Destroy()

	req.Header.Set("Authorization", "Bearer "+buf.String())
	return nil
}

// checkStatus maps non-2xx responses to sentinel or descriptive errors.
func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := readErrorMessage(resp.Body)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	default:
		return fmt.Errorf("store returned status %d: %s", resp.StatusCode, msg)
	}
}

// readErrorMessage extracts the store's error message from a response
// body, falling back to the raw body snippet.
func readErrorMessage(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	if err != nil || len(body) == 0 {
		return "no response body"
	}

	var se storeError
	if err := json.Unmarshal(body, &se); err == nil && se.Error != "" {
		return se.Error
	}
	return string(body)
}
