package res

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Json(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func Success(w http.ResponseWriter, data any, msg string, statusCode int) {
	Json(w, Envelope{Success: true, Data: data, Message: msg}, statusCode)
}

func Error(w http.ResponseWriter, errMsg, msg string, statusCode int) {
	Json(w, Envelope{Success: false, Error: errMsg, Message: msg}, statusCode)
}
