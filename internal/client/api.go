package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/apshuang/ShareDocs/internal/op"
)

// APIClient 文档服务的 REST 客户端。
// token 来自本地凭证库；收到 401 时清除凭证，调用方重新登录。
type APIClient struct {
	BaseURL string
	Token   string

	HTTPClient *http.Client
	State      *LocalState
}

func NewAPIClient(baseURL string, state *LocalState) *APIClient {
	c := &APIClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		State:      state,
	}
	if state != nil {
		if tok, err := state.AccessToken(); err == nil {
			c.Token = tok
		}
	}
	return c
}

type Document struct {
	ID             uint64    `json:"id"`
	Title          string    `json:"title"`
	OwnerID        uint64    `json:"owner_id"`
	Content        string    `json:"content,omitempty"`
	Permission     string    `json:"permission,omitempty"`
	CurrentVersion uint64    `json:"current_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type DocumentPage struct {
	Items      []Document `json:"items"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int64      `json:"total_pages"`
}

type SubmitResult struct {
	Version   uint64       `json:"version"`
	Operation op.Operation `json:"operation"`
}

// APIError 服务端返回的非 2xx 应答
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

// IsConflict 是否为版本冲突（409）
func (e *APIError) IsConflict() bool { return e.StatusCode == http.StatusConflict }

func (c *APIClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// 凭证失效，清掉本地缓存的 token
		c.Token = ""
		if c.State != nil {
			_ = c.State.ClearCredentials()
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: extractErrorMessage(raw, resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

// extractErrorMessage 从错误应答里提取人类可读的消息。
// 依次尝试 error.message、detail（字符串或校验错误列表）、message，
// 都取不到时退化为 "HTTP <code>"。
func extractErrorMessage(raw []byte, statusCode int) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		if errObj, ok := body["error"].(map[string]any); ok {
			if msg, ok := errObj["message"].(string); ok && msg != "" {
				return msg
			}
		}
		switch detail := body["detail"].(type) {
		case string:
			if detail != "" {
				return detail
			}
		case []any:
			parts := make([]string, 0, len(detail))
			for _, item := range detail {
				if m, ok := item.(map[string]any); ok {
					if msg, ok := m["msg"].(string); ok {
						parts = append(parts, msg)
						continue
					}
				}
				parts = append(parts, fmt.Sprint(item))
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
		if msg, ok := body["message"].(string); ok && msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("HTTP %d", statusCode)
}

func (c *APIClient) CreateDocument(ctx context.Context, title, content string) (*Document, error) {
	var doc Document
	err := c.do(ctx, http.MethodPost, "/api/documents", map[string]string{"title": title, "content": content}, &doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *APIClient) ListDocuments(ctx context.Context, page, pageSize int, search string) (*DocumentPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if search != "" {
		q.Set("search", search)
	}
	var result DocumentPage
	if err := c.do(ctx, http.MethodGet, "/api/documents?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) GetDocument(ctx context.Context, docID uint64) (*Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/documents/%d", docID), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *APIClient) UpdateTitle(ctx context.Context, docID uint64, title string) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/documents/%d", docID), map[string]string{"title": title}, nil)
}

func (c *APIClient) DeleteDocument(ctx context.Context, docID uint64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/documents/%d", docID), nil, nil)
}

// SubmitOperation 提交一个编辑操作；409 表示 base_version 过期，
// 调用方应重新拉取文档后重试。
func (c *APIClient) SubmitOperation(ctx context.Context, docID uint64, operation op.Operation) (*SubmitResult, error) {
	var result SubmitResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/documents/%d/operations", docID), operation, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type LoginResult struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int64           `json:"expires_in"`
	User         json.RawMessage `json:"user"`
}

func (c *APIClient) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var result LoginResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, &result)
	if err != nil {
		return nil, err
	}
	c.Token = result.AccessToken
	if c.State != nil {
		if err := c.State.SaveCredentials(result.AccessToken, result.RefreshToken, result.User); err != nil {
			return nil, err
		}
	}
	return &result, nil
}
