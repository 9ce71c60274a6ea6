package coordination

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hugolhafner/go-streams-testing/service"
)

var ErrNotRegistered = errors.New("node not registered")

// Client talks to a coordination service through its connection string.
type Client struct {
	base string
	http *http.Client
}

func NewClient(cs service.ConnectionString) (*Client, error) {
	addrs := cs.Addrs()
	if len(addrs) == 0 {
		return nil, fmt.Errorf("coordination: empty connection string")
	}

	return &Client{
		base: "http://" + addrs[0],
		http: &http.Client{Timeout: 5 * time.Second},
	}, nil
}

func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) Register(ctx context.Context, n NodeInfo) error {
	body, err := json.Marshal(RegisterRequest{Node: n})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/nodes", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, nil)
}

func (c *Client) Deregister(ctx context.Context, kind, id string) error {
	u := c.base + "/nodes/" + url.PathEscape(kind) + "/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) Nodes(ctx context.Context, kind string) ([]NodeInfo, error) {
	u := c.base + "/nodes"
	if kind != "" {
		u += "?kind=" + url.QueryEscape(kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var out ListResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Nodes, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && req.Method == http.MethodDelete {
		return ErrNotRegistered
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("coordination %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
