package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/roach88/fileopen/internal/command"
	"github.com/roach88/fileopen/internal/listener"
	"github.com/roach88/fileopen/internal/notify"
	"github.com/roach88/fileopen/internal/pending"
)

// ErrNotRunning is returned when no host listens on the bridge address.
var ErrNotRunning = errors.New("no fileopen host is running")

// RemoteError is an error envelope returned by the host.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets callers match remote failures against the host's sentinels.
func (e *RemoteError) Is(target error) bool {
	switch e.Code {
	case CodeUnknownCommand:
		return target == command.ErrUnknownCommand
	case CodeInvalidArgs:
		return target == command.ErrInvalidArgs
	case CodeUnsupported:
		return target == command.ErrUnsupported
	case CodeStorePoisoned:
		return target == pending.ErrPoisoned
	}
	return false
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithReconnect sets the event stream reconnect backoff bounds.
func WithReconnect(initial, limit time.Duration) ClientOption {
	return func(c *Client) {
		c.reconnectMin = initial
		c.reconnectMax = limit
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithConnected registers fn to run every time the event stream attaches,
// including after reconnects. Events emitted before fn runs were not
// delivered to this client.
func WithConnected(fn func()) ClientOption {
	return func(c *Client) {
		c.onConnect = fn
	}
}

// WithTimeout bounds non-streaming requests.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client talks to a running host over the bridge.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	reconnectMin time.Duration
	reconnectMax time.Duration
	logger       *slog.Logger
	onConnect    func()
}

// NewClient creates a client for the bridge at network/address.
func NewClient(network, address string, opts ...ClientOption) *Client {
	baseURL := "http://" + address
	if network == "unix" {
		baseURL = "http://fileopen"
	}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, address)
		},
		MaxIdleConns:    4,
		IdleConnTimeout: 30 * time.Second,
	}

	c := &Client{
		baseURL: baseURL,
		// No client timeout: the event stream stays open indefinitely.
		httpClient:   &http.Client{Transport: transport},
		timeout:      10 * time.Second,
		reconnectMin: 1 * time.Second,
		reconnectMax: 30 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke runs a command on the host and returns the raw JSON result.
// A nil args sends no arguments.
func (c *Client) Invoke(ctx context.Context, name string, args any) (json.RawMessage, error) {
	var body []byte
	switch a := args.(type) {
	case nil:
	case json.RawMessage:
		body = a
	default:
		b, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		body = b
	}
	return c.post(ctx, "/invoke/"+url.PathEscape(name), body)
}

// Opened forwards an open-file signal to the host.
func (c *Client) Opened(ctx context.Context, locators []string) (listener.Delivery, error) {
	body, err := json.Marshal(OpenedRequest{Locators: locators})
	if err != nil {
		return listener.Delivery{}, fmt.Errorf("encode locators: %w", err)
	}
	data, err := c.post(ctx, "/lifecycle/opened", body)
	if err != nil {
		return listener.Delivery{}, err
	}
	var d listener.Delivery
	if err := json.Unmarshal(data, &d); err != nil {
		return listener.Delivery{}, fmt.Errorf("decode delivery: %w", err)
	}
	return d, nil
}

// TakePendingOpens drains the host's pending store.
func (c *Client) TakePendingOpens(ctx context.Context) ([]string, error) {
	data, err := c.Invoke(ctx, command.TakePendingOpens, nil)
	if err != nil {
		return nil, err
	}
	paths := []string{}
	if err := json.Unmarshal(data, &paths); err != nil {
		return nil, fmt.Errorf("decode paths: %w", err)
	}
	return paths, nil
}

// Health fetches the host status.
func (c *Client) Health(ctx context.Context) (Health, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return Health{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{}, decodeError(resp)
	}
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("decode health: %w", err)
	}
	return h, nil
}

// Subscribe attaches to the host's event stream. Events arrive on the first
// channel until ctx is cancelled; connection failures are reported on the
// second channel and retried with exponential backoff. Both channels are
// closed when ctx is done.
func (c *Client) Subscribe(ctx context.Context) (<-chan notify.Event, <-chan error) {
	events := make(chan notify.Event, notify.DefaultBuffer)
	errs := make(chan error, 1)

	go c.subscribeLoop(ctx, events, errs)

	return events, errs
}

func (c *Client) subscribeLoop(ctx context.Context, events chan<- notify.Event, errs chan<- error) {
	defer close(events)
	defer close(errs)

	delay := c.reconnectMin
	for {
		err := c.stream(ctx, events)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// The host closed the stream cleanly; reconnect promptly.
			delay = c.reconnectMin
		} else {
			c.logger.Debug("event stream interrupted", "error", err, "retry_in", delay)
			select {
			case errs <- err:
			default:
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if err != nil {
			delay *= 2
			if delay > c.reconnectMax {
				delay = c.reconnectMax
			}
		}
	}
}

func (c *Client) stream(ctx context.Context, events chan<- notify.Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	c.logger.Debug("event stream attached")
	if c.onConnect != nil {
		c.onConnect()
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxBodyBytes)

	var name string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				var event notify.Event
				if err := json.Unmarshal([]byte(data.String()), &event); err != nil {
					c.logger.Debug("skipping malformed event", "event", name, "error", err)
				} else {
					if event.Name == "" {
						event.Name = name
					}
					select {
					case events <- event:
					case <-ctx.Done():
						return nil
					}
				}
			}
			name = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return env.Data, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
		}
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	return resp, nil
}

// decodeError turns a non-200 response into a *RemoteError.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	var env Envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		return &RemoteError{StatusCode: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}
	return &RemoteError{
		StatusCode: resp.StatusCode,
		Code:       http.StatusText(resp.StatusCode),
		Message:    strings.TrimSpace(string(body)),
	}
}
