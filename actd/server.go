package actd

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/servokit/servotune/actuator"
)

// Server serves the actd protocol for any actuator.Controller backend.
// The zero value with a Backend set is usable.
type Server struct {
	// Backend receives the decoded configure/command/query calls
	Backend actuator.Controller

	// Checksum requires and emits *XXXX frame checks when true
	Checksum bool
}

// ListenAndServe listens on addr and serves connections until the listener
// fails.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections from ln, one goroutine per connection.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		reply := s.handle(strings.TrimSpace(scanner.Text()))
		if s.Checksum {
			reply = appendCheck(reply)
		}
		if _, err := fmt.Fprintf(conn, "%s%c", reply, Terminator); err != nil {
			log.Println("actd: write reply:", err)
			return
		}
	}
}

// handle decodes one request line and returns the reply, without terminator
// or checksum.
func (s *Server) handle(line string) string {
	if s.Checksum {
		var err error
		line, err = stripCheck(line, true)
		if err != nil {
			return string(BadReqCode) + err.Error()
		}
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return string(BadReqCode) + "short request"
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return string(BadReqCode) + "bad actuator id"
	}
	args, err := parseFloats(fields[2:])
	if err != nil {
		return string(BadReqCode) + err.Error()
	}
	switch fields[0] {
	case "CFG":
		if len(args) != 6 {
			return string(BadReqCode) + "CFG takes 6 parameters"
		}
		cfg := actuator.Config{
			Gains:         actuator.Gains{Kp: args[0], Kd: args[1], Ki: args[2]},
			Acceleration:  args[3],
			MaxTorque:     args[4],
			TorqueEnabled: args[5] != 0,
		}
		if err := s.Backend.Configure(id, cfg); err != nil {
			return string(BadReqCode) + err.Error()
		}
		return string(OKCode)
	case "MOV":
		switch len(args) {
		case 1:
			err = s.Backend.CommandPosition(id, args[0])
		case 2:
			err = s.Backend.Command(id, args[0], args[1])
		default:
			return string(BadReqCode) + "MOV takes 1 or 2 parameters"
		}
		if err != nil {
			return string(BadReqCode) + err.Error()
		}
		return string(OKCode)
	case "STA":
		if len(args) != 0 {
			return string(BadReqCode) + "STA takes no parameters"
		}
		st, ok, err := s.Backend.GetState(id)
		if err != nil {
			return string(BadReqCode) + err.Error()
		}
		if !ok {
			return string(OKCode)
		}
		return fmt.Sprintf("%c%s %s", OKCode, ftoa(st.Position), ftoa(st.Velocity))
	default:
		return string(BadReqCode) + "unknown command " + fields[0]
	}
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad parameter %q", f)
		}
		out[i] = v
	}
	return out, nil
}
