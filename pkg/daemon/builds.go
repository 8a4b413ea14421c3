package daemon

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/cfengine/cf-bottom/pkg/logging"
	"github.com/cfengine/cf-bottom/pkg/store"
)

const defaultBuildsLimit = 50

func (d *Daemon) buildsHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.S().With("ruid", r.Header.Get("X-Request-ID"))

		log.Debugw("handle request", "command", "builds")
		defer log.Debugw("request handled", "command", "builds")

		limit := defaultBuildsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
				return
			}
			limit = n
		}

		records, err := d.opts.Store.List(limit)
		if err != nil {
			log.Warnw("could not list build records", "err", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if records == nil {
			records = []*store.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func (d *Daemon) buildHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		log := logging.S().With("ruid", r.Header.Get("X-Request-ID"), "id", id)

		rec, err := d.opts.Store.Get(id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		case err != nil:
			log.Warnw("could not fetch build record", "err", err)
			writeError(w, http.StatusInternalServerError, err)
		default:
			writeJSON(w, http.StatusOK, rec)
		}
	}
}
