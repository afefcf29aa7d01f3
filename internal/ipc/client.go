package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	hosterrors "widgethost/internal/infrastructure/errors"
	"widgethost/internal/types"
)

const defaultTimeout = 5 * time.Second

// Client talks to a running widget host
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the socket at socketPath
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    defaultTimeout,
	}
}

// WithTimeout returns a copy of the client using timeout for dial and I/O
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	cp := *c
	cp.timeout = timeout
	return &cp
}

func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, hosterrors.NewWithContext("ipc_dial", fmt.Errorf("failed to connect to widget host: %w (is the host running?)", err),
			hosterrors.ErrCodeConnection, map[string]string{"socket_path": c.socketPath})
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, hosterrors.Wrap("ipc_send", fmt.Errorf("failed to send request: %w", err))
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, hosterrors.Wrap("ipc_receive", fmt.Errorf("failed to read response: %w", err))
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == StatusError {
		return nil, fmt.Errorf("host error: %s", resp.Error)
	}

	return &resp, nil
}

func (c *Client) call(cmd CommandType, payload interface{}, out interface{}) error {
	req, err := NewRequest(cmd, payload)
	if err != nil {
		return err
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// Ping checks that a host is answering
func (c *Client) Ping() error {
	return c.call(CommandPing, nil, nil)
}

// Open asks the host to open a window; it returns once the request is scheduled
func (c *Client) Open(req types.OpenRequest) error {
	return c.call(CommandOpen, req, nil)
}

// StateByWindowLabel fetches one window's record; false means no such window is open
func (c *Client) StateByWindowLabel(label string) (types.WindowState, bool, error) {
	var data StateData
	if err := c.call(CommandGetState, GetStatePayload{WindowLabel: label}, &data); err != nil {
		return types.WindowState{}, false, err
	}
	if !data.Found || data.State == nil {
		return types.WindowState{}, false, nil
	}
	return *data.State, true, nil
}

// ListStates returns every open window's record
func (c *Client) ListStates() ([]types.WindowState, error) {
	var data StatesData
	if err := c.call(CommandListStates, nil, &data); err != nil {
		return nil, err
	}
	return data.States, nil
}

// Status returns host status
func (c *Client) Status() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WaitReady pings until the host answers or the retries run out
func (c *Client) WaitReady(ctx context.Context) error {
	err := hosterrors.RetryQuick(ctx, c.Ping)
	if err != nil && !errors.Is(err, context.Canceled) {
		return hosterrors.Wrap("ipc_wait_ready", err)
	}
	return err
}
