package obs

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// RequestTimeout bounds how long a single Call waits for its matching
// RequestResponse before failing (spec.md §4.5).
const RequestTimeout = 5 * time.Second

// EventCallback receives every decoded Event frame the socket delivers.
type EventCallback func(eventType string, data json.RawMessage)

// Client is a minimal obs-websocket v5 client: Hello/Identify handshake,
// an async Call(requestType, data) keyed by a UUID requestId (mirroring
// the request-id-keyed pending map obs-websocket client libraries use),
// and an event callback for unsolicited Event frames.
//
// Modeled on the teacher's CDPClient (sandbox/internal/browser/cdp.go):
// gorilla/websocket dialer, a mutex-guarded pending-response map keyed by
// request id, and a single read-loop goroutine fan-in.
type Client struct {
	conn     *websocket.Conn
	password string
	onEvent  EventCallback
	// onClose is invoked once, from the read loop, when the socket drops
	// for any reason. The driver uses it to trigger the reconnect path.
	onClose func()

	mu      sync.Mutex
	pending map[string]chan requestResponseData

	identified chan struct{}
}

// NewClient constructs a Client. password may be empty if the target OBS
// instance has no websocket authentication configured.
func NewClient(password string, onEvent EventCallback, onClose func()) *Client {
	return &Client{
		password:   password,
		onEvent:    onEvent,
		onClose:    onClose,
		pending:    make(map[string]chan requestResponseData),
		identified: make(chan struct{}),
	}
}

// Dial connects to url (e.g. "ws://host:4455"), performs the
// Hello/Identify handshake, and starts the read loop. It blocks until
// Identified arrives or the handshake fails.
func (c *Client) Dial(url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("obs: dial %s: %w", url, err)
	}
	c.conn = conn

	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		conn.Close()
		return fmt.Errorf("obs: reading hello: %w", err)
	}
	if env.Op != opHello {
		conn.Close()
		return fmt.Errorf("obs: expected Hello (op %d), got op %d", opHello, env.Op)
	}
	var hello helloData
	if err := json.Unmarshal(env.D, &hello); err != nil {
		conn.Close()
		return fmt.Errorf("obs: decoding hello: %w", err)
	}

	ident := identifyData{RPCVersion: rpcVersion}
	if hello.Authentication != nil {
		ident.Authentication = computeAuthResponse(c.password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	identBytes, _ := json.Marshal(ident)
	if err := conn.WriteJSON(envelope{Op: opIdentify, D: identBytes}); err != nil {
		conn.Close()
		return fmt.Errorf("obs: sending identify: %w", err)
	}

	var identEnv envelope
	if err := conn.ReadJSON(&identEnv); err != nil {
		conn.Close()
		return fmt.Errorf("obs: reading identified: %w", err)
	}
	if identEnv.Op != opIdentified {
		conn.Close()
		return fmt.Errorf("obs: expected Identified (op %d), got op %d — authentication likely rejected", opIdentified, identEnv.Op)
	}

	go c.readLoop()
	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) readLoop() {
	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			if c.onClose != nil {
				c.onClose()
			}
			return
		}

		switch env.Op {
		case opRequestResponse:
			var resp requestResponseData
			if err := json.Unmarshal(env.D, &resp); err != nil {
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[resp.RequestID]
			if ok {
				delete(c.pending, resp.RequestID)
			}
			c.mu.Unlock()
			if ok {
				ch <- resp
			}
		case opEvent:
			var ev eventData
			if err := json.Unmarshal(env.D, &ev); err != nil {
				continue
			}
			if c.onEvent != nil {
				c.onEvent(ev.EventType, ev.EventData)
			}
		}
	}
}

// Call issues one request and blocks for its matching response, up to
// RequestTimeout. data is marshaled as the request's requestData payload;
// pass nil for requests that take no parameters.
func (c *Client) Call(requestType string, data any) (json.RawMessage, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("obs: not connected")
	}

	id := uuid.NewString()
	ch := make(chan requestResponseData, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	var payload json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			c.mu.Lock()
			delete(c.pending, id)
			c.mu.Unlock()
			return nil, fmt.Errorf("obs: marshaling request data: %w", err)
		}
		payload = b
	}

	reqBytes, _ := json.Marshal(requestData{RequestType: requestType, RequestID: id, RequestData: payload})
	if err := c.conn.WriteJSON(envelope{Op: opRequest, D: reqBytes}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("obs: sending request %s: %w", requestType, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("obs: connection closed awaiting %s", requestType)
		}
		if !resp.RequestStatus.Result {
			return nil, fmt.Errorf("obs: request %s failed (code %d): %s", requestType, resp.RequestStatus.Code, resp.RequestStatus.Comment)
		}
		return resp.ResponseData, nil
	case <-time.After(RequestTimeout):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("obs: request %s timed out after %s", requestType, RequestTimeout)
	}
}
