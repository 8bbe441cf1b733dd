package actd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/servokit/servotune/actuator"
	"github.com/servokit/servotune/comm"
)

// Client is a connection to an actd endpoint.  It implements
// actuator.Controller.  Create with NewClient or NewSerialClient.
type Client struct {
	pool     *comm.Pool
	timeout  time.Duration
	checksum bool
}

// NewClient returns a Client speaking actd over TCP to addr.
func NewClient(addr string) *Client {
	maker := comm.BackingOffTCPConnMaker(addr, 3*time.Second)
	return &Client{
		pool:    comm.NewPool(1, 30*time.Second, maker),
		timeout: 10 * time.Second,
	}
}

// NewSerialClient returns a Client speaking actd over a serial port.  Frame
// checksums are enabled; serial servo buses flip bits often enough to matter.
func NewSerialClient(port string, baud int) *Client {
	maker := comm.SerialConnMaker(port, baud, 3*time.Second)
	return &Client{
		pool:     comm.NewPool(1, 30*time.Second, maker),
		timeout:  10 * time.Second,
		checksum: true,
	}
}

// Close frees the client's connections.
func (c *Client) Close() {
	c.pool.Close()
}

func (c *Client) writeRead(msg string) (response, error) {
	var resp response
	conn, err := c.pool.Get()
	if err != nil {
		return resp, err
	}
	wrap, err := comm.NewTimeout(conn, c.timeout)
	if errors.Is(err, comm.ErrNoDeadline) {
		// serial ports carry their own read timeout
		wrap = conn
	} else if err != nil {
		c.pool.ReturnWithError(conn, err)
		return resp, err
	}
	wrap = comm.NewTerminator(wrap, Terminator, Terminator)
	if c.checksum {
		msg = appendCheck(msg)
	}
	_, err = wrap.Write([]byte(msg))
	if err != nil {
		c.pool.ReturnWithError(conn, err)
		return resp, err
	}
	// one reply per transaction, single read suffices (the daemon writes the
	// whole line in one packet)
	buf := make([]byte, 1500)
	n, err := wrap.Read(buf)
	c.pool.ReturnWithError(conn, err)
	if err != nil {
		return resp, err
	}
	resp = parseResponse(buf[:n])
	if c.checksum {
		// the daemon sums the whole reply, code byte included
		full, err := stripCheck(string(resp.code)+resp.body, true)
		if err != nil {
			return resp, err
		}
		resp.body = full[1:]
	}
	return resp, nil
}

func (c *Client) writeOnly(msg string) error {
	resp, err := c.writeRead(msg)
	if err != nil {
		return err
	}
	if !resp.isOK() {
		return fmt.Errorf("actd: endpoint rejected %q: %s", msg, resp.body)
	}
	return nil
}

// Configure applies control parameters to the actuator with the given ID.
func (c *Client) Configure(id int, cfg actuator.Config) error {
	torq := 0
	if cfg.TorqueEnabled {
		torq = 1
	}
	msg := fmt.Sprintf("CFG %d %s %s %s %s %s %d",
		id, ftoa(cfg.Kp), ftoa(cfg.Kd), ftoa(cfg.Ki),
		ftoa(cfg.Acceleration), ftoa(cfg.MaxTorque), torq)
	return c.writeOnly(msg)
}

// Command sets a position setpoint with a velocity feedforward.
func (c *Client) Command(id int, pos, vel float64) error {
	return c.writeOnly(fmt.Sprintf("MOV %d %s %s", id, ftoa(pos), ftoa(vel)))
}

// CommandPosition sets a position setpoint alone.
func (c *Client) CommandPosition(id int, pos float64) error {
	return c.writeOnly(fmt.Sprintf("MOV %d %s", id, ftoa(pos)))
}

// GetState reads back the measured state of the actuator.  The bool return is
// false when the endpoint replied but had no state to report.
func (c *Client) GetState(id int) (actuator.State, bool, error) {
	var s actuator.State
	resp, err := c.writeRead(fmt.Sprintf("STA %d", id))
	if err != nil {
		return s, false, err
	}
	if !resp.isOK() {
		return s, false, fmt.Errorf("actd: state query rejected: %s", resp.body)
	}
	body := strings.TrimSpace(resp.body)
	if body == "" {
		return s, false, nil
	}
	fields := strings.Fields(body)
	if len(fields) != 2 {
		return s, false, fmt.Errorf("actd: malformed state reply %q", resp.body)
	}
	s.Position, err = strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return s, false, err
	}
	s.Velocity, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return s, false, err
	}
	return s, true, nil
}

// Raw sends a protocol line verbatim and returns the response body.
func (c *Client) Raw(s string) (string, error) {
	resp, err := c.writeRead(s)
	if err != nil {
		return "", err
	}
	if !resp.isOK() {
		return "", fmt.Errorf("actd: endpoint rejected %q: %s", s, resp.body)
	}
	return resp.body, nil
}
