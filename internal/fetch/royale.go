package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go-crtools/internal/model"
)

// WarLogLimit 为每次拉取的部落战场数。
const WarLogLimit = 20

// Clan 拉取部落信息，返回解码后的结构与原始响应体（用于审计日志）。
// tag 以 # 开头，需转义，否则会被当作 URL 片段。
func (c *Client) Clan(ctx context.Context, tag string) (model.Clan, json.RawMessage, error) {
	u := c.clanURL(tag)
	b, err := c.get(ctx, "get clan", u)
	if err != nil {
		return model.Clan{}, nil, err
	}
	var clan model.Clan
	if err := json.Unmarshal(b, &clan); err != nil {
		return model.Clan{}, nil, &RemoteFetchError{Op: "decode clan", URL: u, Err: err}
	}
	return clan, json.RawMessage(b), nil
}

// WarLog 拉取最近 WarLogLimit 场部落战，仅返回 items 字段（解码值与原始字节）。
func (c *Client) WarLog(ctx context.Context, tag string) ([]model.War, json.RawMessage, error) {
	u := fmt.Sprintf("%s/warlog?limit=%d", c.clanURL(tag), WarLogLimit)
	b, err := c.get(ctx, "get warlog", u)
	if err != nil {
		return nil, nil, err
	}
	var env struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, nil, &RemoteFetchError{Op: "decode warlog", URL: u, Err: err}
	}
	if len(env.Items) == 0 || string(env.Items) == "null" {
		return nil, nil, &RemoteFetchError{Op: "decode warlog", URL: u, Err: fmt.Errorf("missing items")}
	}
	var wars []model.War
	if err := json.Unmarshal(env.Items, &wars); err != nil {
		return nil, nil, &RemoteFetchError{Op: "decode warlog items", URL: u, Err: err}
	}
	return wars, env.Items, nil
}

func (c *Client) clanURL(tag string) string {
	return c.baseURL + "/clans/" + url.PathEscape(tag)
}
