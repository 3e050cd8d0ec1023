package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"orgsync/internal/domain/sync"
)

var (
	ErrUnauthorized = errors.New("требуется вход: сессия отсутствует или истекла")
	ErrUnavailable  = errors.New("сервер недоступен")
)

// StatusError ответ сервера с кодом ошибки, отличной от 401
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("ошибка сервера: %d %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("ошибка сервера: статус %d", e.Status)
}

type httpClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	token     string
	userAgent string
}

func NewHTTPClient(baseURL string, timeout time.Duration, log *slog.Logger) *httpClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &httpClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		log:       log,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "syncctl/1.0",
	}
}

// SetToken устанавливает токен аутентификации
func (h *httpClient) SetToken(token string) {
	h.token = token
}

// HealthCheck проверяет доступность сервера
func (h *httpClient) HealthCheck(ctx context.Context) error {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, nil)
}

type loginRequest struct {
	OrganizationID string `json:"organization_id"`
	Login          string `json:"login"`
	Password       string `json:"password"`
	DeviceID       string `json:"device_id"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	MemberID  string    `json:"member_id"`
	Role      string    `json:"role"`
}

func (h *httpClient) Login(ctx context.Context, req loginRequest) (*loginResponse, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", req)
	if err != nil {
		return nil, err
	}

	var out loginResponse
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}

	h.SetToken(out.Token)
	return &out, nil
}

func (h *httpClient) Push(ctx context.Context, req sync.PushRequest) (*sync.PushResponse, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/sync/push", req)
	if err != nil {
		return nil, err
	}

	var out sync.PushResponse
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *httpClient) Pull(ctx context.Context, since string, limit int) (*sync.Page, error) {
	q := url.Values{}
	if since != "" {
		q.Set("since", since)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/api/v1/sync/pull"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := h.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var out sync.Page
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Operation возвращает строку журнала сервера по ключу идемпотентности
func (h *httpClient) Operation(ctx context.Context, key string) (*sync.OperationLog, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/sync/operations/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, err
	}

	var out sync.OperationLog
	if err := h.parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *httpClient) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	h.log.Debug("Отправка запроса",
		slog.String("method", method),
		slog.String("url", req.URL.String()),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return resp, nil
}

func (h *httpClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: ошибка чтения ответа: %v", ErrUnavailable, err)
	}

	h.log.Debug("Получен ответ", slog.Int("status", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: статус %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		var problem struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(body, &problem)
		return &StatusError{Status: resp.StatusCode, Detail: problem.Detail}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}

	return nil
}
