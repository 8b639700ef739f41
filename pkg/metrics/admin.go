package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	pbjson "github.com/meftunca/postbench/pkg/json"
	"github.com/meftunca/postbench/pkg/version"
)

// NewAdminRouter serves /metrics, /health and /version
func NewAdminRouter(m *PrometheusMetrics) *mux.Router {
	started := time.Now()

	r := mux.NewRouter()
	r.Handle("/metrics", m.GetHTTPHandler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]interface{}{
			"status":         "ok",
			"uptime_seconds": time.Since(started).Seconds(),
		})
	}).Methods(http.MethodGet)
	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, version.GetVersionInfo())
	}).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := pbjson.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// Serve runs the admin listener on addr until ctx is done
func Serve(ctx context.Context, addr string, m *PrometheusMetrics) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewAdminRouter(m),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
