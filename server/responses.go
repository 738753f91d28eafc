package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Message is the body of every non-PDF response.
type Message struct {
	Type    string `json:"type"` // "error" or "ok"
	Message string `json:"message"`
}

// writePDF sends data as an attachment named filename. Headers are frozen
// once it returns.
func writePDF(w http.ResponseWriter, log *zap.Logger, filename string, data []byte) {
	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Warn("writing PDF to response", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn("writing JSON to response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, log *zap.Logger, status int, msg string) {
	writeJSON(w, log, status, Message{Type: "error", Message: msg})
}
