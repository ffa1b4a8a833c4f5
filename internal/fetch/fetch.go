// 包 fetch 封装访问 Clash Royale API 的 HTTP 客户端（代理/超时/鉴权），不做重试。
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL 为官方 API 地址。
const DefaultBaseURL = "https://api.clashroyale.com/v1"

// 响应体读取上限。
const maxBody = 8 << 20

// RemoteFetchError 表示网络/HTTP 状态/JSON 解码失败，对本次运行是致命错误。
type RemoteFetchError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *RemoteFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: http status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// Client 为带 Bearer 鉴权的 API 客户端。
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	ua      string
}

// Options 为客户端构造参数。
type Options struct {
	BaseURL    string
	APIKey     string
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
	UserAgent  string
}

// New 创建客户端，支持 http/https 代理与基础超时配置。
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse base url %s: %w", base, err)
	}
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && opts.ProxyHTTPS != "" {
				return url.Parse(opts.ProxyHTTPS)
			}
			if req.URL.Scheme == "http" && opts.ProxyHTTP != "" {
				return url.Parse(opts.ProxyHTTP)
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	cl := &http.Client{Transport: transport}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	cl.Timeout = opts.Timeout
	ua := opts.UserAgent
	if ua == "" {
		ua = "go-crtools"
	}
	return &Client{http: cl, baseURL: base, apiKey: opts.APIKey, ua: ua}, nil
}

// get 发起一次带鉴权的 GET，仅 2xx 视为成功，返回完整响应体。
func (c *Client) get(ctx context.Context, op, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &RemoteFetchError{Op: op, URL: u, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", c.ua)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RemoteFetchError{Op: op, URL: u, Err: err}
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteFetchError{Op: op, URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s: %s", resp.Status, snippet(b))}
	}
	if err != nil {
		return nil, &RemoteFetchError{Op: op, URL: u, Err: fmt.Errorf("read body: %w", err)}
	}
	return b, nil
}

// snippet 截取响应体前 200 字节，便于日志定位（API 错误体一般含 reason/message）。
func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
