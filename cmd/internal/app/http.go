package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authapi "courier/cmd/internal/auth/api"
	chatapi "courier/cmd/internal/chat/api"
	"courier/cmd/internal/realtime"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	be *backends,
	gateway *realtime.Gateway,
	auth *authapi.Handler,
	chat *chatapi.Handler,
	promReg *prometheus.Registry,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !be.dbBacked() {
			http.Error(w, "store not configured", http.StatusServiceUnavailable)
			return
		}

		if err := be.ping(r.Context(), 2*time.Second); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			log.Info("readyz.store.not_ready", "err", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	if auth != nil {
		auth.Register(mux)
	}
	if chat != nil {
		chat.Register(mux)
	}

	mux.HandleFunc("/ws", gateway.HandleWS)
}
