package api

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// RespondWithJSON marshals the payload and writes it with the given status code.
func RespondWithJSON(statusCode int, w http.ResponseWriter, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).Error("could not marshal json payload")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(response); err != nil {
		log.WithError(err).Error("could not write json response")
	}
}

// FailureResponse writes a standard error payload.
func FailureResponse(w http.ResponseWriter, statusCode int, message string) {
	RespondWithJSON(statusCode, w, map[string]interface{}{
		"code":    statusCode,
		"message": message,
	})
}
