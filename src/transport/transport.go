package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nhirsama/infra-console/src/inter"
	"golang.org/x/oauth2"
)

// DefaultBaseURL 未配置时使用的后端地址
const DefaultBaseURL = "http://localhost:8080"

// RequestIDHeader 每个请求携带的追踪编号
const RequestIDHeader = "X-Request-ID"

// maxErrorBody 读取错误正文的上限
const maxErrorBody = 64 << 10

// Client 所有领域客户端共享的 HTTP 传输层
// 基础地址在构造时确定，之后不可修改
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient 创建传输层
// source 为 nil 时所有请求都不携带令牌
// base 为 nil 时使用 http.DefaultTransport
func NewClient(baseURL string, source inter.CredentialSource, base *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("后端地址无效: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("后端地址无效: 不支持的协议 %q", u.Scheme)
	}

	hc := &http.Client{Timeout: 15 * time.Second}
	var next http.RoundTripper
	if base != nil {
		hc.Timeout = base.Timeout
		hc.Jar = base.Jar
		next = base.Transport
	}
	hc.Transport = &bearerTransport{source: source, next: next}

	return &Client{baseURL: u, http: hc}, nil
}

// BaseURL 返回后端地址
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do 发送请求
// in 非 nil 时编码为 JSON 正文；out 为 *string 时读取纯文本正文，其他非 nil 值按 JSON 解码
// 非 2xx 响应返回 *inter.ResponseError
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("编码请求失败: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawPath = ""
	if strings.Contains(path, "%") {
		u.RawPath = c.baseURL.EscapedPath() + path
		if p, err := url.PathUnescape(path); err == nil {
			u.Path = c.baseURL.Path + p
		}
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Printf("请求 %s %s 失败: %v", method, path, err)
		return &inter.ResponseError{Kind: inter.ErrServer, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newResponseError(resp)
	}

	switch o := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *string:
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &inter.ResponseError{Status: resp.StatusCode, Kind: inter.ErrServer, Cause: err}
		}
		*o = string(raw)
		return nil
	default:
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &inter.ResponseError{Status: resp.StatusCode, Kind: inter.ErrServer, Cause: err}
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			log.Printf("解析响应 %s %s 失败: %v", method, path, err)
			return &inter.ResponseError{Status: resp.StatusCode, Kind: inter.ErrServer, Message: "响应格式错误", Cause: err}
		}
		return nil
	}
}

// newResponseError 将非 2xx 响应归类为标准错误
func newResponseError(resp *http.Response) *inter.ResponseError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	re := &inter.ResponseError{
		Status:  resp.StatusCode,
		Message: extractMessage(raw),
		Kind:    KindForStatus(resp.StatusCode),
	}
	log.Printf("请求 %s %s 返回 %d (request-id=%s)", resp.Request.Method, resp.Request.URL.Path,
		resp.StatusCode, resp.Request.Header.Get(RequestIDHeader))
	return re
}

// KindForStatus 状态码到标准错误的映射
func KindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return inter.ErrUnauthenticated
	case status == http.StatusForbidden:
		return inter.ErrForbidden
	case status == http.StatusNotFound:
		return inter.ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return inter.ErrValidation
	default:
		return inter.ErrServer
	}
}

// extractMessage 优先读取 JSON 的 message 字段，否则使用纯文本正文
func extractMessage(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '{' {
		// Spring 默认错误体 {timestamp,status,error,path} 没有可展示的信息
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &payload); err == nil {
			return payload.Message
		}
	}
	if bytes.HasPrefix(raw, []byte("<")) {
		return ""
	}
	return string(raw)
}

// bearerTransport 请求拦截器与响应拦截器
type bearerTransport struct {
	source inter.CredentialSource
	next   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}

	// RoundTripper 不得修改原请求
	r := req.Clone(req.Context())
	if r.Header.Get(RequestIDHeader) == "" {
		r.Header.Set(RequestIDHeader, uuid.NewString())
	}

	var presented string
	if t.source != nil && !isAnonymous(req.Context()) {
		presented = t.source.Token()
	}
	if presented != "" {
		(&oauth2.Token{AccessToken: presented, TokenType: "Bearer"}).SetAuthHeader(r)
	}

	resp, err := next.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && t.source != nil {
		t.source.HandleUnauthorized(presented)
	}
	return resp, nil
}

type anonymousKey struct{}

// WithoutCredentials 标记请求不携带令牌，登录请求使用
func WithoutCredentials(ctx context.Context) context.Context {
	return context.WithValue(ctx, anonymousKey{}, true)
}

func isAnonymous(ctx context.Context) bool {
	v, _ := ctx.Value(anonymousKey{}).(bool)
	return v
}

// IsStatus 判断错误是否为指定状态码的响应
func IsStatus(err error, status int) bool {
	var re *inter.ResponseError
	return errors.As(err, &re) && re.Status == status
}
