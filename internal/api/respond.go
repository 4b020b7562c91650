package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/Pland4r/project-ai/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

// writeFailure reports an unexpected error as a 500 with its wrap chain
func writeFailure(w http.ResponseWriter, logger *zap.Logger, err error) {
	logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{
		Error: err.Error(),
		Trace: errorTrace(err),
	})
}

// errorTrace lists err and every error it wraps, outermost first
func errorTrace(err error) []string {
	var trace []string
	for err != nil {
		trace = append(trace, err.Error())
		err = errors.Unwrap(err)
	}
	return trace
}
