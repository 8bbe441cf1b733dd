package actd_test

import (
	"net"
	"strings"
	"testing"

	"github.com/servokit/servotune/actd"
	"github.com/servokit/servotune/actuator"
)

// bench is a canned backend for loopback tests.
type bench struct {
	cfg      actuator.Config
	pos, vel float64
	haveSt   bool
	st       actuator.State
}

func (b *bench) Configure(id int, cfg actuator.Config) error {
	b.cfg = cfg
	return nil
}

func (b *bench) Command(id int, pos, vel float64) error {
	b.pos, b.vel = pos, vel
	return nil
}

func (b *bench) CommandPosition(id int, pos float64) error {
	b.pos, b.vel = pos, 0
	return nil
}

func (b *bench) GetState(id int) (actuator.State, bool, error) {
	return b.st, b.haveSt, nil
}

func loopback(t *testing.T, b *bench) *actd.Client {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	srv := &actd.Server{Backend: b}
	go srv.Serve(ln)
	cl := actd.NewClient(ln.Addr().String())
	t.Cleanup(cl.Close)
	return cl
}

func TestClientConfigure(t *testing.T) {
	b := &bench{}
	cl := loopback(t, b)
	want := actuator.Config{
		Gains:         actuator.Gains{Kp: 20, Kd: 55, Ki: 0.01},
		Acceleration:  2000,
		MaxTorque:     100,
		TorqueEnabled: true,
	}
	if err := cl.Configure(1, want); err != nil {
		t.Fatal(err)
	}
	if b.cfg != want {
		t.Errorf("configure round trip: expected %+v got %+v", want, b.cfg)
	}
}

func TestClientCommand(t *testing.T) {
	b := &bench{}
	cl := loopback(t, b)
	if err := cl.Command(1, 12.5, -3.25); err != nil {
		t.Fatal(err)
	}
	if b.pos != 12.5 || b.vel != -3.25 {
		t.Errorf("command round trip: got pos %g vel %g", b.pos, b.vel)
	}
	if err := cl.CommandPosition(1, 7); err != nil {
		t.Fatal(err)
	}
	if b.pos != 7 || b.vel != 0 {
		t.Errorf("position command round trip: got pos %g vel %g", b.pos, b.vel)
	}
}

func TestClientGetState(t *testing.T) {
	b := &bench{haveSt: true, st: actuator.State{Position: 9.75, Velocity: -0.5}}
	cl := loopback(t, b)
	st, ok, err := cl.GetState(1)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected state to be present")
	}
	if st != b.st {
		t.Errorf("state round trip: expected %+v got %+v", b.st, st)
	}
}

func TestClientGetStateEmpty(t *testing.T) {
	// the bare % reply means "no state yet", not an error
	b := &bench{haveSt: false}
	cl := loopback(t, b)
	st, ok, err := cl.GetState(1)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Errorf("expected empty state, got %+v", st)
	}
}

func TestClientRejection(t *testing.T) {
	b := &bench{}
	cl := loopback(t, b)
	_, err := cl.Raw("FLY 1 2")
	if err == nil {
		t.Fatal("expected rejection of unknown verb")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("rejection should carry the daemon's reason, got %v", err)
	}
}
