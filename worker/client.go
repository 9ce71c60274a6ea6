package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hugolhafner/go-streams-testing/service"
)

// Info describes a worker node.
type Info struct {
	ID       string `json:"id"`
	GroupID  string `json:"group_id"`
	Addr     string `json:"addr"`
	Upstream string `json:"upstream"`
}

type ConnectorsResponse struct {
	Tasks []string `json:"tasks"`
}

// Client talks to the REST endpoint of one worker.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the first address of cs.
func NewClient(cs service.ConnectionString) *Client {
	var addr string
	if addrs := cs.Addrs(); len(addrs) > 0 {
		addr = addrs[0]
	}

	return &Client{
		base: "http://" + addr,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) Info(ctx context.Context) (Info, error) {
	var out Info
	err := c.get(ctx, "/", &out)
	return out, err
}

func (c *Client) Connectors(ctx context.Context) ([]string, error) {
	var out ConnectorsResponse
	if err := c.get(ctx, "/connectors", &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// TaskStatuses returns the last reported status of every task in the group.
func (c *Client) TaskStatuses(ctx context.Context) ([]TaskStatus, error) {
	var out TasksResponse
	if err := c.get(ctx, "/tasks", &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("worker GET %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
