package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Client wraps a Backend with typed helpers for the most common hook tools.
// Charm entry points written in Go use a Client; everything still funnels
// through Backend.Call so record and replay see every interaction.
type Client struct {
	backend Backend
}

// NewClient returns a Client routing all calls through backend.
func NewClient(backend Backend) *Client {
	return &Client{backend: backend}
}

// Backend returns the underlying transport, for calls the typed surface
// does not cover.
func (c *Client) Backend() Backend { return c.backend }

func (c *Client) call(ctx context.Context, op Op, args ...string) (json.RawMessage, error) {
	return c.backend.Call(ctx, Signature{Op: op, Args: args})
}

// RelationGet reads one unit's databag on a relation. Pass unit="" with
// app=true to read the application databag.
func (c *Client) RelationGet(ctx context.Context, relationID int, unit string, app bool) (map[string]string, error) {
	args := []string{"-r", strconv.Itoa(relationID), "-", unit}
	if app {
		args = append(args, "--app")
	}
	raw, err := c.call(ctx, RelationGet, args...)
	if err != nil {
		return nil, err
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("relation-get: decode response: %w", err)
	}
	return data, nil
}

// RelationSet writes key=value pairs into the unit databag on a relation.
func (c *Client) RelationSet(ctx context.Context, relationID int, values map[string]string) error {
	args := []string{"-r", strconv.Itoa(relationID)}
	for _, k := range sortedKeys(values) {
		args = append(args, k+"="+values[k])
	}
	_, err := c.call(ctx, RelationSet, args...)
	return err
}

// RelationIDs lists the active relation IDs for an endpoint.
func (c *Client) RelationIDs(ctx context.Context, endpoint string) ([]int, error) {
	raw, err := c.call(ctx, RelationIDs, endpoint)
	if err != nil {
		return nil, err
	}
	var ids []int
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("relation-ids: decode response: %w", err)
	}
	return ids, nil
}

// RelationUnits lists the remote units present on a relation.
func (c *Client) RelationUnits(ctx context.Context, relationID int) ([]string, error) {
	raw, err := c.call(ctx, RelationList, "-r", strconv.Itoa(relationID))
	if err != nil {
		return nil, err
	}
	var units []string
	if err := json.Unmarshal(raw, &units); err != nil {
		return nil, fmt.Errorf("relation-list: decode response: %w", err)
	}
	return units, nil
}

// ConfigGet returns the charm config as a key-value map.
func (c *Client) ConfigGet(ctx context.Context) (map[string]any, error) {
	raw, err := c.call(ctx, ConfigGet)
	if err != nil {
		return nil, err
	}
	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config-get: decode response: %w", err)
	}
	return cfg, nil
}

// Status is a workload status as reported by status-get.
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusGet returns the unit's current workload status.
func (c *Client) StatusGet(ctx context.Context) (Status, error) {
	raw, err := c.call(ctx, StatusGet, "--include-data")
	if err != nil {
		return Status{}, err
	}
	var st Status
	if err := json.Unmarshal(raw, &st); err != nil {
		return Status{}, fmt.Errorf("status-get: decode response: %w", err)
	}
	return st, nil
}

// StatusSet sets the unit's workload status.
func (c *Client) StatusSet(ctx context.Context, status, message string) error {
	_, err := c.call(ctx, StatusSet, status, message)
	return err
}

// IsLeader reports whether this unit currently holds application leadership.
func (c *Client) IsLeader(ctx context.Context) (bool, error) {
	raw, err := c.call(ctx, IsLeader)
	if err != nil {
		return false, err
	}
	var leader bool
	if err := json.Unmarshal(raw, &leader); err != nil {
		return false, fmt.Errorf("is-leader: decode response: %w", err)
	}
	return leader, nil
}

// StateGet reads one key from the unit's stored state.
func (c *Client) StateGet(ctx context.Context, key string) (string, error) {
	raw, err := c.call(ctx, StateGet, key)
	if err != nil {
		return "", err
	}
	var val string
	if err := json.Unmarshal(raw, &val); err != nil {
		return "", fmt.Errorf("state-get: decode response: %w", err)
	}
	return val, nil
}

// StateSet writes one key into the unit's stored state.
func (c *Client) StateSet(ctx context.Context, key, value string) error {
	_, err := c.call(ctx, StateSet, key+"="+value)
	return err
}

// JujuLog forwards a log line to the agent's log.
func (c *Client) JujuLog(ctx context.Context, level, message string) error {
	_, err := c.call(ctx, JujuLog, "--log-level", level, message)
	return err
}

// ReadFile reads a tracked path through the interceptor, so the content is
// snapshotted on record and served from the snapshot on replay.
func (c *Client) ReadFile(ctx context.Context, path string) ([]byte, error) {
	raw, err := c.call(ctx, FileRead, path)
	if err != nil {
		return nil, err
	}
	var content []byte
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("file-read: decode response: %w", err)
	}
	return content, nil
}

// sortedKeys keeps relation-set signatures deterministic regardless of map
// iteration order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
