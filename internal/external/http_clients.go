package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/spec-kit/field-service/pkg/util"
)

// HTTPClientConfig configures the collaborator service clients.
type HTTPClientConfig struct {
	ComplaintBaseURL string
	WarrantyBaseURL  string
	CatalogBaseURL   string
	Timeout          time.Duration
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// complaintHTTPClient talks to the complaint service over REST.
type complaintHTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewComplaintClient builds the complaint service client.
func NewComplaintClient(cfg HTTPClientConfig) ComplaintClient {
	return &complaintHTTPClient{
		baseURL: cfg.ComplaintBaseURL,
		client:  newHTTPClient(cfg.Timeout),
	}
}

func (c *complaintHTTPClient) Lookup(ctx context.Context, id string) (*Complaint, error) {
	endpoint := fmt.Sprintf("%s/complaints/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewExternalDependency("complaint service", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalDependency("complaint service", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var complaint Complaint
		if err := json.NewDecoder(resp.Body).Decode(&complaint); err != nil {
			return nil, apperrors.NewExternalDependency("complaint service", err)
		}
		return &complaint, nil
	case http.StatusNotFound:
		return nil, apperrors.NewNotFound("complaint", map[string]any{"complaint_id": id})
	default:
		return nil, apperrors.NewExternalDependency("complaint service", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

func (c *complaintHTTPClient) UpdateStatus(ctx context.Context, id, status string) error {
	endpoint := fmt.Sprintf("%s/complaints/%s/status", c.baseURL, url.PathEscape(id))
	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return apperrors.NewExternalDependency("complaint service", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewExternalDependency("complaint service", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.NewExternalDependency("complaint service", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apperrors.NewExternalDependency("complaint service", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

// warrantyHTTPClient talks to the warranty service.
type warrantyHTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewWarrantyClient builds the warranty service client.
func NewWarrantyClient(cfg HTTPClientConfig) WarrantyClient {
	return &warrantyHTTPClient{
		baseURL: cfg.WarrantyBaseURL,
		client:  newHTTPClient(cfg.Timeout),
	}
}

func (c *warrantyHTTPClient) Check(ctx context.Context, purchasedArticleID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/warranty/%s", c.baseURL, url.PathEscape(purchasedArticleID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, apperrors.NewExternalDependency("warranty service", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, apperrors.NewExternalDependency("warranty service", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, apperrors.NewExternalDependency("warranty service", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	var payload struct {
		UnderWarranty bool `json:"under_warranty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, apperrors.NewExternalDependency("warranty service", err)
	}
	return payload.UnderWarranty, nil
}

// catalogHTTPClient talks to the article catalogue.
type catalogHTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewCatalogClient builds the catalogue client.
func NewCatalogClient(cfg HTTPClientConfig) CatalogClient {
	return &catalogHTTPClient{
		baseURL: cfg.CatalogBaseURL,
		client:  newHTTPClient(cfg.Timeout),
	}
}

func (c *catalogHTTPClient) LookupPart(ctx context.Context, id string) (*Part, error) {
	endpoint := fmt.Sprintf("%s/parts/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewExternalDependency("catalogue service", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalDependency("catalogue service", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var part Part
		if err := json.NewDecoder(resp.Body).Decode(&part); err != nil {
			return nil, apperrors.NewExternalDependency("catalogue service", err)
		}
		return &part, nil
	case http.StatusNotFound:
		return nil, apperrors.NewNotFound("part", map[string]any{"part_id": id})
	default:
		return nil, apperrors.NewExternalDependency("catalogue service", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}
