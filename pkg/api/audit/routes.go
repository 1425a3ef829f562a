package audit

import (
	"net/http"

	"go.uber.org/zap"

	apiconfig "forensic_audit/pkg/api/config"
)

// NewRouter wires every endpoint behind CORS and access logging.
func NewRouter(h *Handler, cfg *apiconfig.Handler, log *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/audit/upload", h.HandleUpload)
	mux.HandleFunc("/api/audit/score", h.HandleScore)
	mux.HandleFunc("/api/audit/report", h.HandleReport)
	mux.HandleFunc("/api/audit/benford", h.HandleBenford)
	mux.HandleFunc("/ws/audit", h.HandleWebSocket)
	mux.HandleFunc("/healthz", h.HandleHealth)

	if cfg != nil {
		mux.HandleFunc("/api/config", cfg.HandleConfig)
		mux.HandleFunc("/api/config/switch", cfg.HandleSwitch)
	}

	if log == nil {
		log = zap.NewNop()
	}
	return AccessLog(log.Named("http"), CORS(h.opts.AllowedOrigins, mux))
}
