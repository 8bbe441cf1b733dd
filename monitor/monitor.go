// Package monitor exposes a small HTTP inspection surface over a simulated
// actuator bank: live state, retained history, and gain adjustment, so gains
// can be poked at and traces watched while a test runs.
package monitor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/servokit/servotune/sim"
)

// FloatT is the JSON shape used for scalar float payloads in both directions.
type FloatT struct {
	F64 float64 `json:"f64"`
}

// StateT is the JSON shape of a state reply.
type StateT struct {
	Position float64 `json:"pos"`
	Velocity float64 `json:"vel"`
}

// ConfigT is the JSON shape of a configuration reply.
type ConfigT struct {
	Kp            float64 `json:"kp"`
	Kd            float64 `json:"kd"`
	Ki            float64 `json:"ki"`
	Acceleration  float64 `json:"acceleration"`
	MaxTorque     float64 `json:"max_torque"`
	TorqueEnabled bool    `json:"torque_enabled"`
}

// NewRouter returns the HTTP routes over the given simulated bank.
func NewRouter(a *sim.Actuator) http.Handler {
	r := chi.NewRouter()
	r.Get("/actuator/{id}/state", getState(a))
	r.Get("/actuator/{id}/history", getHistory(a))
	r.Get("/actuator/{id}/config", getConfig(a))
	r.Get("/actuator/{id}/gain/{name}", getGain(a))
	r.Post("/actuator/{id}/gain/{name}", setGain(a))
	return r
}

func popID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

func respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func getState(a *sim.Actuator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := popID(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		st, ok, _ := a.GetState(id)
		if !ok {
			http.Error(w, "no state for actuator", http.StatusNotFound)
			return
		}
		respond(w, StateT{Position: st.Position, Velocity: st.Velocity})
	}
}

func getHistory(a *sim.Actuator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := popID(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h := a.History(id)
		if h == nil {
			http.Error(w, "no history for actuator", http.StatusNotFound)
			return
		}
		respond(w, h)
	}
}

func getConfig(a *sim.Actuator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := popID(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cfg, ok := a.Config(id)
		if !ok {
			http.Error(w, "no config for actuator", http.StatusNotFound)
			return
		}
		respond(w, ConfigT{
			Kp: cfg.Kp, Kd: cfg.Kd, Ki: cfg.Ki,
			Acceleration:  cfg.Acceleration,
			MaxTorque:     cfg.MaxTorque,
			TorqueEnabled: cfg.TorqueEnabled,
		})
	}
}

func getGain(a *sim.Actuator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := popID(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		v, err := a.Gain(id, chi.URLParam(r, "name"))
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		respond(w, FloatT{F64: v})
	}
}

func setGain(a *sim.Actuator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := popID(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f := FloatT{}
		err = json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := a.SetGain(id, chi.URLParam(r, "name"), f.F64); err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func statusFor(err error) int {
	if errors.Is(err, sim.ErrUnknownJoint) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
