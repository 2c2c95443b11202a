package rest

import (
	"net/http"
	"time"
)

const (
	serviceName    = "tictactics-server"
	serviceVersion = "1.0.0"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version"`
}

func (that *httpHandlers) PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		that.logger.Error("failed to write pong", "error", err)
		return
	}
}

func (that *httpHandlers) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	that.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: that.now().UTC().Format(time.RFC3339),
		Service:   serviceName,
		Version:   serviceVersion,
	})
}
