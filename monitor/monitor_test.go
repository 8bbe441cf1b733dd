package monitor

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/servokit/servotune/actuator"
	"github.com/servokit/servotune/sim"
)

func testServer(t *testing.T) (*sim.Actuator, *httptest.Server) {
	t.Helper()
	bank := sim.New(time.Millisecond)
	t.Cleanup(bank.Close)
	srv := httptest.NewServer(NewRouter(bank))
	t.Cleanup(srv.Close)
	return bank, srv
}

func TestGetState(t *testing.T) {
	bank, srv := testServer(t)
	if err := bank.Configure(1, actuator.Config{
		Gains:         actuator.Gains{Kp: 10, Kd: 1},
		MaxTorque:     100,
		TorqueEnabled: true,
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/actuator/1/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	st := StateT{}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
}

func TestGetStateUnknownJoint(t *testing.T) {
	_, srv := testServer(t)
	resp, err := http.Get(srv.URL + "/actuator/9/state")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for a never-touched joint, got %d", resp.StatusCode)
	}
}

func TestGainRoundTrip(t *testing.T) {
	bank, srv := testServer(t)
	if err := bank.Configure(1, actuator.Config{
		Gains:     actuator.Gains{Kp: 10, Kd: 1},
		MaxTorque: 100,
	}); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(FloatT{F64: 0.125})
	resp, err := http.Post(srv.URL+"/actuator/1/gain/ki", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("gain post: expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/actuator/1/gain/ki")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	f := FloatT{}
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		t.Fatal(err)
	}
	if f.F64 != 0.125 {
		t.Errorf("expected ki 0.125 back, got %g", f.F64)
	}
}

func TestSetGainUnknownJoint(t *testing.T) {
	_, srv := testServer(t)
	body, _ := json.Marshal(FloatT{F64: 1})
	resp, err := http.Post(srv.URL+"/actuator/9/gain/kp", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetConfig(t *testing.T) {
	bank, srv := testServer(t)
	want := actuator.Config{
		Gains:         actuator.Gains{Kp: 24, Kd: 0.75, Ki: 0.01},
		Acceleration:  2000,
		MaxTorque:     100,
		TorqueEnabled: true,
	}
	if err := bank.Configure(1, want); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get(srv.URL + "/actuator/1/config")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	got := ConfigT{}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Kp != want.Kp || got.Ki != want.Ki || !got.TorqueEnabled {
		t.Errorf("config round trip: got %+v", got)
	}
}
