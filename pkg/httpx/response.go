package httpx

import (
	"encoding/json"
	"net/http"
)

// The wire contract is binary: 200 with a successMessage (or a structured
// record), or 404 with an errorMessage. No other status codes carry data.

type successEnvelope struct {
	SuccessMessage string `json:"successMessage"`
}

type errorEnvelope struct {
	ErrorMessage string `json:"errorMessage"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a 200 acknowledgment envelope.
func WriteSuccess(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusOK, successEnvelope{SuccessMessage: message})
}

// WriteError writes a 404 error envelope. Every failure shape in the API uses
// this, regardless of cause.
func WriteError(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusNotFound, errorEnvelope{ErrorMessage: message})
}

// NoCache prevents intermediaries from caching sensitive responses.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
