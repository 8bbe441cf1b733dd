// Command actsim serves a simulated actuator bank over the actd protocol,
// plus an HTTP monitor for watching state and poking gains while tests run.
package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/servokit/servotune/actd"
	"github.com/servokit/servotune/monitor"
	"github.com/servokit/servotune/sim"
)

func main() {
	addr := flag.String("addr", ":7701", "address to serve the actd protocol on")
	httpAddr := flag.String("http", ":7702", "address to serve the HTTP monitor on")
	step := flag.Duration("step", time.Millisecond, "integration step of the simulation")
	flag.Parse()

	bank := sim.New(*step)
	defer bank.Close()

	go func() {
		log.Println("monitor listening at", *httpAddr)
		log.Fatal(http.ListenAndServe(*httpAddr, monitor.NewRouter(bank)))
	}()

	srv := &actd.Server{Backend: bank}
	log.Println("actd listening at", *addr)
	log.Fatal(srv.ListenAndServe(*addr))
}
