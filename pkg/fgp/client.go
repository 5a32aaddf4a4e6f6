package fgp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Client dials a daemon socket and exchanges request/response lines.
// It is not safe for concurrent use; callers wanting parallelism open
// one Client per goroutine.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

// Dial connects to the daemon listening on socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", socketPath, err)
	}
	return &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: 10 * time.Second,
	}, nil
}

// Call sends one request with a fresh id and decodes the response.
func (c *Client) Call(method string, params map[string]any) (*Response, error) {
	return c.CallID(uuid.NewString(), method, params)
}

// CallID sends one request under a caller-chosen id.
func (c *Client) CallID(id, method string, params map[string]any) (*Response, error) {
	line, err := c.CallRaw(id, method, params)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &resp, nil
}

// CallRaw sends one request and returns the raw response line without
// its trailing newline.
func (c *Client) CallRaw(id, method string, params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	req := Request{ID: id, V: ProtocolVersion, Method: method, Params: params}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	data = append(data, '\n')

	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(data); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return line[:len(line)-1], nil
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() (*Response, error) {
	return c.Call(MethodStop, nil)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
