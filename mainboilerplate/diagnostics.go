package mainboilerplate

import (
	_ "expvar" // Import for /debug/vars
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" // Import for /debug/pprof
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// DiagnosticsConfig configures pull-based application metrics, debugging and diagnostics.
type DiagnosticsConfig struct {
	Port string `long:"port" env:"PORT" default:":8090" description:"Address for serving Prometheus metrics and debug endpoints. Empty disables serving"`
}

// InitDiagnosticsAndRecover enables serving of metrics and debugging services
// registered on the default HTTPMux. It also returns a closure which should be
// deferred, which recover a panic and attempt to log a K8s termination message.
func InitDiagnosticsAndRecover(cfg DiagnosticsConfig) func() {
	registerDebugHandlers()

	if cfg.Port != "" {
		var l = serveDiagnostics(cfg.Port)
		log.WithField("addr", l.Addr().String()).Info("serving diagnostics")
	}

	return func() {
		if r := recover(); r != nil {
			// Make a best effort attempt to write a termination message.
			// Bug: https://github.com/kubernetes/kubernetes/issues/31839
			if f, err := os.OpenFile(k8sTerminationLog, os.O_WRONLY, 0777); err == nil {
				fmt.Fprintf(f, "%+v", r)
				f.Close()
			}
			panic(r)
		}
	}
}

var debugHandlersOnce sync.Once

// registerDebugHandlers installs debug endpoints on the default HTTPMux. It's
// guarded so that repeated initialization (as in tests) doesn't panic on
// duplicate registration.
func registerDebugHandlers() {
	debugHandlersOnce.Do(func() {
		// Package "net/http/pprof" serves /debug/pprof/.
		// Package "expvar" serves /debug/vars

		// Serve a liveness check at /debug/ready.
		http.HandleFunc("/debug/ready", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		// Serve Prometheus metrics at /debug/metrics.
		http.Handle("/debug/metrics", promhttp.Handler())
	})
}

// serveDiagnostics binds |addr| and serves the default HTTPMux on it.
func serveDiagnostics(addr string) net.Listener {
	var l, err = net.Listen("tcp", addr)
	Must(err, "failed to bind diagnostics address", "addr", addr)

	go func() {
		if err := http.Serve(l, nil); err != nil {
			log.WithField("err", err).Error("diagnostics server failed")
		}
	}()
	return l
}

// Must panics if |err| is non-nil, supplying |msg| and |extra| as
// formatter and fields of the generated panic.
func Must(err error, msg string, extra ...interface{}) {
	if err == nil {
		return
	}
	var f = log.Fields{"err": err}
	for i := 0; i+1 < len(extra); i += 2 {
		f[extra[i].(string)] = extra[i+1]
	}
	log.WithFields(f).Panic(msg)
}

const (
	// k8sTerminationLog is the location to write a termination message for
	// Kubernetes to retrieve.
	//
	// Link: https://kubernetes.io/docs/tasks/debug-application-cluster/determine-reason-pod-failure/#setting-the-termination-log-file
	k8sTerminationLog = "/dev/termination-log"
)
