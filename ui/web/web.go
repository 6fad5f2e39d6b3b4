package web

import (
	"encoding/json"
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/pollrelay/pollrelay/cfg"
	"github.com/pollrelay/pollrelay/poller"
)

var config cfg.Config
var poll *poller.Poller

// error response contains everything we need to use http.Error
type handlerError struct {
	Error   error
	Message string
	Code    int
}

// a custom type that we can use for handling errors and formatting responses
type handler func(w http.ResponseWriter, r *http.Request) (interface{}, *handlerError)

// attach the standard ServeHTTP method to our handler so the http library can call it
func (fn handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response, err := fn(w, r)

	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"%s"}`, err.Message+": "+err.Error.Error()), err.Code)
		return
	}
	if response == nil {
		http.Error(w, "Internal server error. Check the logs.", http.StatusInternalServerError)
		return
	}

	bytes, e := json.Marshal(response)
	if e != nil {
		http.Error(w, fmt.Sprintf("Error marshalling JSON:'%s'", e), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(bytes)
}

func showConfig(w http.ResponseWriter, r *http.Request) (interface{}, *handlerError) {
	return config, nil
}

func showStatus(w http.ResponseWriter, r *http.Request) (interface{}, *handlerError) {
	return poll.Snapshot(), nil
}

// Handler returns the admin API router. Split out from Start so tests
// can drive it through httptest.
func Handler(c cfg.Config, p *poller.Poller, enableDebug bool) http.Handler {
	config = c
	poll = p

	router := mux.NewRouter()
	router.Handle("/config", handler(showConfig)).Methods("GET")
	router.Handle("/status", handler(showStatus)).Methods("GET")
	router.Handle("/debug/vars", expvar.Handler()).Methods("GET")
	if enableDebug {
		log.Info("enabled debug endpoints on /debug/pprof")
		router.HandleFunc("/debug/pprof/", pprof.Index)
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.HandleFunc("/debug/pprof/{name}", func(w http.ResponseWriter, r *http.Request) {
			if p, ok := mux.Vars(r)["name"]; ok {
				pprof.Handler(p).ServeHTTP(w, r)
			} else {
				w.WriteHeader(404)
			}
		})
	}

	return handlers.CompressHandler(handlers.CombinedLoggingHandler(os.Stdout, router))
}

func Start(addr string, c cfg.Config, p *poller.Poller, enableDebug bool) {
	log.Infof("admin HTTP listener starting on %v", addr)
	err := http.ListenAndServe(addr, Handler(c, p, enableDebug))
	if err != nil {
		log.Errorf("admin HTTP listener: %s", err.Error())
		os.Exit(1)
	}
}
