// Package api provides the REST client for the dashboard backend. It
// speaks the /api/v1/{type}/ collection endpoints with JSON bodies and
// classifies failures so the sync engine can decide what to retry.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/planhub/core/internal/errors"
	"github.com/planhub/core/internal/logging"
	"github.com/planhub/core/internal/models"
)

const defaultTimeout = 15 * time.Second

// Config holds client construction parameters.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8090".
	BaseURL string
	// HTTPClient overrides the transport; nil means a default client
	// with a 15s timeout.
	HTTPClient *http.Client
	// Schemas maps resource types to their advisory validation schema.
	// Violations found while decoding are logged, never rejected.
	Schemas map[models.ResourceType]models.Schema
	Logger  *logging.Logger
}

// Client calls the dashboard REST API.
type Client struct {
	baseURL string
	http    *http.Client
	schemas map[models.ResourceType]models.Schema
	log     *logging.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Get()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		schemas: cfg.Schemas,
		log:     logger.WithComponent("api"),
	}
}

// List fetches the collection for rt. A non-zero since is sent as
// ?since=<RFC3339> so the server returns only entities changed after it.
func (c *Client) List(ctx context.Context, rt models.ResourceType, since string) ([]models.Entity, error) {
	endpoint := c.collectionURL(rt)
	if since != "" {
		endpoint += "?since=" + url.QueryEscape(since)
	}

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var entities []models.Entity
	if err := json.Unmarshal(body, &entities); err != nil {
		return nil, errors.Wrap(errors.ErrServer, "decoding list response", err)
	}
	for _, entity := range entities {
		c.validate(rt, entity)
	}
	return entities, nil
}

// Create inserts a new entity and returns the server's representation.
func (c *Client) Create(ctx context.Context, rt models.ResourceType, entity models.Entity) (models.Entity, error) {
	return c.write(ctx, http.MethodPost, c.collectionURL(rt), rt, entity)
}

// Update replaces an entity wholesale and returns the server's
// representation.
func (c *Client) Update(ctx context.Context, rt models.ResourceType, id string, entity models.Entity) (models.Entity, error) {
	if id == "" {
		return nil, errors.New(errors.ErrInvalid, "update requires an entity id")
	}
	return c.write(ctx, http.MethodPut, c.collectionURL(rt)+id, rt, entity)
}

// Delete removes an entity on the server.
func (c *Client) Delete(ctx context.Context, rt models.ResourceType, id string) error {
	if id == "" {
		return errors.New(errors.ErrInvalid, "delete requires an entity id")
	}
	_, err := c.do(ctx, http.MethodDelete, c.collectionURL(rt)+id, nil)
	return err
}

func (c *Client) write(ctx context.Context, method, endpoint string, rt models.ResourceType, entity models.Entity) (models.Entity, error) {
	payload, err := json.Marshal(entity)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalid, "encoding entity", err)
	}

	body, err := c.do(ctx, method, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var returned models.Entity
	if err := json.Unmarshal(body, &returned); err != nil {
		return nil, errors.Wrap(errors.ErrServer, "decoding entity response", err)
	}
	if returned.ID() == "" {
		return nil, errors.New(errors.ErrServer, "server response is missing an id")
	}
	c.validate(rt, returned)
	return returned, nil
}

// do runs one request and maps the outcome onto the error taxonomy:
// transport failures and 5xx are network-class (retryable), 4xx are
// validation-class (not retried as network).
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalid, "building request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNetwork, fmt.Sprintf("%s %s", method, endpoint), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNetwork, "reading response body", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, errors.New(errors.ErrNetwork, fmt.Sprintf("%s %s: server returned %d", method, endpoint, resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, errors.New(errors.ErrValidation, fmt.Sprintf("%s %s: server rejected request with %d", method, endpoint, resp.StatusCode))
	}
	return body, nil
}

// validate applies the advisory schema for rt. Violations are logged
// only; the entity still flows through.
func (c *Client) validate(rt models.ResourceType, entity models.Entity) {
	schema, ok := c.schemas[rt]
	if !ok {
		return
	}
	for _, violation := range schema.Validate(entity) {
		c.log.Warn("entity failed advisory validation", map[string]interface{}{
			"resource_type": string(rt),
			"entity_id":     entity.ID(),
			"violation":     violation,
		})
	}
}

func (c *Client) collectionURL(rt models.ResourceType) string {
	return fmt.Sprintf("%s/api/v1/%s/", c.baseURL, rt)
}
