// Package contest 外部评测平台（Yandex.Contest）公开 API 客户端
package contest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cscenter/backend/config"
)

// RegisterStatus 注册接口返回的状态码
const (
	StatusCreated           = http.StatusCreated      // 201 新注册
	StatusAlreadyRegistered = http.StatusConflict     // 409 已注册
	StatusBadToken          = http.StatusUnauthorized // 401 Token 失效
)

// APIError 评测平台返回的非预期响应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("contest api: status %d: %s", e.StatusCode, e.Body)
}

// IsBadToken 判断错误是否由 OAuth Token 失效导致
func IsBadToken(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// API 评测平台操作集合（服务层依赖此接口，便于替换）
type API interface {
	RegisterParticipant(ctx context.Context, contestID int64, login string) (status int, participantID int64, err error)
	Standings(ctx context.Context, contestID int64, page, pageSize int) (*Standings, error)
}

// Factory 按招生季的 access token 创建客户端
type Factory func(accessToken string) API

// ParticipantInfo 榜单中的参赛者
type ParticipantInfo struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// ProblemResult 单题结果
type ProblemResult struct {
	Score string `json:"score"`
}

// Row 榜单一行
type Row struct {
	ParticipantInfo ParticipantInfo `json:"participantInfo"`
	Score           string          `json:"score"`
	ProblemResults  []ProblemResult `json:"problemResults"`
}

// Title 题目标题
type Title struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// Standings 榜单分页数据
type Standings struct {
	Titles []Title `json:"titles"`
	Rows   []Row   `json:"rows"`
}

// TitleNames 返回题目名列表
func (s *Standings) TitleNames() []string {
	names := make([]string, len(s.Titles))
	for i, t := range s.Titles {
		names[i] = t.Name
	}
	return names
}

// ParseScore 解析本地化分数字符串（逗号小数点），按银行家舍入取整
func ParseScore(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("无效的分数 %q: %w", s, err)
	}
	return int(math.RoundToEven(f)), nil
}

// Client 评测平台 HTTP 客户端
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewClient 创建客户端
func NewClient(cfg *config.ContestConfig, accessToken string) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// NewFactory 返回基于配置的客户端工厂
func NewFactory(cfg *config.ContestConfig) Factory {
	return func(accessToken string) API {
		return NewClient(cfg, accessToken)
	}
}

// RegisterParticipant 在竞赛中注册参赛者
// 201 返回参赛者 ID；409 表示已注册（participantID 为 0）
func (c *Client) RegisterParticipant(ctx context.Context, contestID int64, login string) (int, int64, error) {
	q := url.Values{"login": {login}}
	endpoint := fmt.Sprintf("%s/contests/%d/participants?%s", c.baseURL, contestID, q.Encode())

	status, body, err := c.do(ctx, http.MethodPost, endpoint)
	if err != nil {
		return 0, 0, err
	}

	switch status {
	case StatusCreated:
		var participantID int64
		if err := json.Unmarshal(body, &participantID); err != nil {
			return 0, 0, fmt.Errorf("解析参赛者 ID 失败: %w", err)
		}
		return status, participantID, nil
	case StatusAlreadyRegistered:
		return status, 0, nil
	default:
		return 0, 0, &APIError{StatusCode: status, Body: string(body)}
	}
}

// Standings 获取榜单的一页
func (c *Client) Standings(ctx context.Context, contestID int64, page, pageSize int) (*Standings, error) {
	q := url.Values{
		"page":     {strconv.Itoa(page)},
		"pageSize": {strconv.Itoa(pageSize)},
	}
	endpoint := fmt.Sprintf("%s/contests/%d/standings?%s", c.baseURL, contestID, q.Encode())

	status, body, err := c.do(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}

	var s Standings
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("解析榜单失败: %w", err)
	}
	return &s, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "OAuth "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("请求评测平台失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("读取响应失败: %w", err)
	}
	return resp.StatusCode, body, nil
}
