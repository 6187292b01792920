// Package channel implements the opaque bidirectional channel a
// RemoteWorker uses to talk to the automan-agent process running on
// (or standing in for) a remote host: a self-delimiting JSON
// request/reply protocol carried over a pair of byte streams, the Go
// analogue of the execnet channel the original scheduler used to ship
// calls across a gateway's stdin/stdout pipes.
package channel

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// Method names the remote operation a Request carries.
type Method string

const (
	MethodRun        Method = "run"
	MethodStatus     Method = "status"
	MethodJoin       Method = "join"
	MethodStdout     Method = "stdout"
	MethodStderr     Method = "stderr"
	MethodInfo       Method = "info"
	MethodClean      Method = "clean"
	MethodFreeCores  Method = "free_cores"
	MethodTotalCores Method = "total_cores"
)

// Request is one call sent across the channel. Params is kept as raw
// JSON so the transport layer never needs to know the method-specific
// payload shapes.
type Request struct {
	ID     uint64          `json:"id"`
	Method Method          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Reply answers a Request with the same ID. Err is a plain string
// (not a wrapped Go error) because it has to survive a JSON round trip
// intact.
type Reply struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Err    string          `json:"error,omitempty"`
}

// Conn is one end of the channel: a JSON encoder/decoder pair over an
// underlying read/write stream (a subprocess's stdio, or an in-memory
// io.Pipe for the testing=true path exercised by RemoteWorker). Decode
// is what makes the framing self-delimiting — json.Decoder reads
// exactly one value at a time off the stream without needing a
// length-prefix or newline convention of its own.
type Conn struct {
	enc *json.Encoder
	dec *json.Decoder
	mu  sync.Mutex // serializes writes; the underlying pipe is not safe for concurrent Encode calls
}

// New wraps r/w (typically a subprocess's Stdout/Stdin, in that order
// from the caller's side) as a Conn.
func New(r io.Reader, w io.Writer) *Conn {
	return &Conn{enc: json.NewEncoder(w), dec: json.NewDecoder(r)}
}

// SendRequest writes req to the wire.
func (c *Conn) SendRequest(req Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(req)
}

// ReadRequest blocks for the next Request off the wire.
func (c *Conn) ReadRequest() (Request, error) {
	var req Request
	err := c.dec.Decode(&req)
	return req, err
}

// SendReply writes rep to the wire.
func (c *Conn) SendReply(rep Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(rep)
}

// ReadReply blocks for the next Reply off the wire.
func (c *Conn) ReadReply() (Reply, error) {
	var rep Reply
	err := c.dec.Decode(&rep)
	return rep, err
}

// Client issues synchronous request/reply calls across a Conn. Calls
// are serialized: automan's scheduler never needs more than one
// in-flight call per worker, so a single round-trip at a time keeps
// this honest instead of building a multiplexing layer nothing uses.
type Client struct {
	conn *Conn
	mu   sync.Mutex
	next uint64
}

// NewClient wraps conn for synchronous request/reply use.
func NewClient(conn *Conn) *Client {
	return &Client{conn: conn}
}

// Call sends method with params marshalled to JSON, blocks for the
// matching reply, and unmarshals its result into result (which may be
// nil if the caller doesn't need one).
func (c *Client) Call(method Method, params interface{}, result interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := atomic.AddUint64(&c.next, 1)
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("channel: encoding params for %s: %w", method, err)
		}
		raw = b
	}
	if err := c.conn.SendRequest(Request{ID: id, Method: method, Params: raw}); err != nil {
		return fmt.Errorf("channel: sending %s: %w", method, err)
	}

	rep, err := c.conn.ReadReply()
	if err != nil {
		return fmt.Errorf("channel: reading reply to %s: %w", method, err)
	}
	if rep.ID != id {
		return fmt.Errorf("channel: reply id %d does not match request id %d", rep.ID, id)
	}
	if rep.Err != "" {
		return fmt.Errorf("channel: remote error: %s", rep.Err)
	}
	if result != nil && len(rep.Result) > 0 {
		if err := json.Unmarshal(rep.Result, result); err != nil {
			return fmt.Errorf("channel: decoding result of %s: %w", method, err)
		}
	}
	return nil
}

// Handler answers one Request with a Reply, run by the peer side
// (pkg/worker's remoteManager) serving a Conn in a loop.
type Handler func(Request) Reply

// Serve reads requests off conn until it hits EOF or ctx-like
// cancellation isn't needed (the caller's process exit tears down the
// stream), dispatching each to handle and writing back its Reply.
func Serve(conn *Conn, handle Handler) error {
	for {
		req, err := conn.ReadRequest()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("channel: reading request: %w", err)
		}
		rep := handle(req)
		rep.ID = req.ID
		if err := conn.SendReply(rep); err != nil {
			return fmt.Errorf("channel: sending reply: %w", err)
		}
	}
}

// OK builds a successful Reply carrying result.
func OK(result interface{}) Reply {
	if result == nil {
		return Reply{}
	}
	b, err := json.Marshal(result)
	if err != nil {
		return Reply{Err: fmt.Sprintf("channel: encoding result: %v", err)}
	}
	return Reply{Result: b}
}

// Error builds a failing Reply carrying err's message.
func Error(err error) Reply {
	return Reply{Err: err.Error()}
}

// Unmarshal decodes a Request's Params into v.
func Unmarshal(req Request, v interface{}) error {
	if len(req.Params) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params, v)
}
