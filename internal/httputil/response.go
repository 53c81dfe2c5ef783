package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/unainr/screen-recorder/internal/apperr"
)

type ErrorBody struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Error: message})
}

// WriteFailure maps a tagged error to its HTTP status and user-facing
// message. Untagged errors come out as a generic 500.
func WriteFailure(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	WriteError(w, apperr.HTTPStatus(kind), apperr.Message(err))
}
