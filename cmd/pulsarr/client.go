package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client wraps HTTP calls to the pulsarr server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new pulsarr API client.
func NewClient(serverURL string) *Client {
	return &Client{
		baseURL: serverURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) get(path string, result any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func (c *Client) post(path string, body any, result any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func (c *Client) put(path string, body any, result any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	req, err := http.NewRequest(http.MethodPut, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func (c *Client) delete(path string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// API response types (mirror server types)

type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type RoutingResponse struct {
	InstanceID     int64    `json:"instance_id"`
	QualityProfile string   `json:"quality_profile,omitempty"`
	RootFolder     string   `json:"root_folder,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Priority       int      `json:"priority"`
	RuleID         int64    `json:"rule_id,omitempty"`
	RuleName       string   `json:"rule_name,omitempty"`
}

type ApprovalContextResponse struct {
	Reason          string           `json:"reason"`
	TriggeredBy     string           `json:"triggered_by"`
	ProposedRouting *RoutingResponse `json:"proposed_routing"`
}

type DecisionResponse struct {
	Action   string                   `json:"action"`
	Routing  *RoutingResponse         `json:"routing,omitempty"`
	Approval *ApprovalContextResponse `json:"approval,omitempty"`
}

type ApprovalResponse struct {
	ID               int64            `json:"id"`
	UserID           int64            `json:"user_id"`
	ContentType      string           `json:"content_type"`
	ContentTitle     string           `json:"content_title"`
	ContentKey       string           `json:"content_key"`
	ProposedDecision DecisionResponse `json:"proposed_decision"`
	RouterRuleID     *int64           `json:"router_rule_id,omitempty"`
	TriggeredBy      string           `json:"triggered_by"`
	ApprovalReason   string           `json:"approval_reason,omitempty"`
	Status           string           `json:"status"`
	ApprovedBy       string           `json:"approved_by,omitempty"`
	ApprovalNotes    string           `json:"approval_notes,omitempty"`
	ExpiresAt        *string          `json:"expires_at,omitempty"`
	CreatedAt        string           `json:"created_at"`
	UpdatedAt        string           `json:"updated_at"`
}

type QuotaStatusResponse struct {
	UserID         int64  `json:"user_id"`
	ContentType    string `json:"content_type"`
	QuotaType      string `json:"quota_type,omitempty"`
	Limit          int    `json:"quota_limit"`
	CurrentUsage   int    `json:"current_usage"`
	Exceeded       bool   `json:"exceeded"`
	ResetDate      string `json:"reset_date,omitempty"`
	BypassApproval bool   `json:"bypass_approval"`
	Unlimited      bool   `json:"unlimited,omitempty"`
}

type RuleResponse struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Type             string          `json:"type"`
	TargetType       string          `json:"target_type"`
	TargetInstanceID int64           `json:"target_instance_id"`
	QualityProfile   string          `json:"quality_profile"`
	RootFolder       string          `json:"root_folder"`
	Tags             []string        `json:"tags"`
	Priority         int             `json:"priority"`
	Enabled          bool            `json:"enabled"`
	Criteria         json.RawMessage `json:"criteria"`
	RequireApproval  bool            `json:"require_approval"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

type FieldInfoResponse struct {
	Field      string   `json:"field"`
	Operators  []string `json:"operators"`
	ValueTypes []string `json:"value_types"`
}

type EvaluatorMetadataResponse struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Priority    int                 `json:"priority"`
	Fields      []FieldInfoResponse `json:"fields,omitempty"`
}

type InstanceResponse struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	BaseURL        string   `json:"base_url"`
	Enabled        bool     `json:"enabled"`
	Default        bool     `json:"default"`
	QualityProfile string   `json:"quality_profile"`
	RootFolder     string   `json:"root_folder"`
	Tags           []string `json:"tags"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	EventType  string          `json:"event_type"`
	EntityType string          `json:"entity_type"`
	EntityID   int64           `json:"entity_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt string          `json:"occurred_at"`
}

// API methods

func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get("/api/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Approvals(status string, userID *int64, limit int) ([]ApprovalResponse, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))
	if status != "" {
		params.Set("status", status)
	}
	if userID != nil {
		params.Set("user_id", fmt.Sprintf("%d", *userID))
	}

	var resp []ApprovalResponse
	if err := c.get("/api/v1/approvals?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Approval(id int64) (*ApprovalResponse, error) {
	var resp ApprovalResponse
	if err := c.get(fmt.Sprintf("/api/v1/approvals/%d", id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ApprovalHistory(id int64) ([]EventResponse, error) {
	var resp []EventResponse
	if err := c.get(fmt.Sprintf("/api/v1/approvals/%d/history", id), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Approve(id int64, approvedBy, notes string) (*ApprovalResponse, error) {
	req := map[string]any{
		"approved_by": approvedBy,
		"notes":       notes,
	}

	var resp ApprovalResponse
	if err := c.post(fmt.Sprintf("/api/v1/approvals/%d/approve", id), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Reject(id int64, rejectedBy, notes string) (*ApprovalResponse, error) {
	req := map[string]any{
		"rejected_by": rejectedBy,
		"notes":       notes,
	}

	var resp ApprovalResponse
	if err := c.post(fmt.Sprintf("/api/v1/approvals/%d/reject", id), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteApproval(id int64) error {
	return c.delete(fmt.Sprintf("/api/v1/approvals/%d", id))
}

func (c *Client) QuotaStatus(userID int64, contentType string) (*QuotaStatusResponse, error) {
	path := fmt.Sprintf("/api/v1/quotas/%d?content_type=%s", userID, url.QueryEscape(contentType))
	var resp QuotaStatusResponse
	if err := c.get(path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SetQuota(userID int64, contentType, quotaType string, limit int, bypass bool) (*QuotaStatusResponse, error) {
	req := map[string]any{
		"content_type":    contentType,
		"quota_type":      quotaType,
		"quota_limit":     limit,
		"bypass_approval": bypass,
	}

	var resp QuotaStatusResponse
	if err := c.put(fmt.Sprintf("/api/v1/quotas/%d", userID), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ClearQuota(userID int64, contentType string) error {
	return c.delete(fmt.Sprintf("/api/v1/quotas/%d?content_type=%s", userID, url.QueryEscape(contentType)))
}

func (c *Client) Rules() ([]RuleResponse, error) {
	var resp []RuleResponse
	if err := c.get("/api/v1/rules", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Rule(id int64) (*RuleResponse, error) {
	var resp RuleResponse
	if err := c.get(fmt.Sprintf("/api/v1/rules/%d", id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteRule(id int64) error {
	return c.delete(fmt.Sprintf("/api/v1/rules/%d", id))
}

func (c *Client) Fields() ([]EvaluatorMetadataResponse, error) {
	var resp []EvaluatorMetadataResponse
	if err := c.get("/api/v1/fields", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Instances() ([]InstanceResponse, error) {
	var resp []InstanceResponse
	if err := c.get("/api/v1/instances", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Events(limit int) ([]EventResponse, error) {
	var resp []EventResponse
	if err := c.get(fmt.Sprintf("/api/v1/events?limit=%d", limit), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
