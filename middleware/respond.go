package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bikebill/authcore"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteError writes err as a JSON error. Only the public message leaves the
// process.
func WriteError(w http.ResponseWriter, err error) {
	var rl *authcore.RateLimitedError
	if errors.As(err, &rl) {
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfterSeconds()))
	}
	WriteJSON(w, authcore.HTTPStatus(err), ErrorBody{Error: authcore.PublicMessage(err)})
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
