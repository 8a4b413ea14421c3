package daemon

import (
	"net/http"

	"github.com/cfengine/cf-bottom/pkg/logging"
)

// Healthcheck is the response of GET /healthcheck.
type Healthcheck struct {
	Status   string `json:"status"`
	Scanning bool   `json:"scanning"`
	LastScan string `json:"last_scan,omitempty"`
}

func (d *Daemon) healthcheckHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.S().With("ruid", r.Header.Get("X-Request-ID"))

		log.Debugw("handle request", "command", "healthcheck")
		defer log.Debugw("request handled", "command", "healthcheck")

		out := Healthcheck{Status: "ok"}
		if s := d.opts.Scanner; s != nil {
			out.Scanning = s.Running()
			if last := s.Last(); !last.IsZero() {
				out.LastScan = last.UTC().Format("2006-01-02T15:04:05Z")
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}
