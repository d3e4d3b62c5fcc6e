package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/khaledhikmat/vs-frames/service/lgr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// StartServer serves /metrics and /healthz. It returns nil when port is 0.
func StartServer(port int) *http.Server {
	if port <= 0 {
		return nil
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: NewMux(),
	}

	go func() {
		lgr.Logger.Info("metrics server starting", slog.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	return srv
}
