package router

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-obo-blueprints/oauthmodel"
)

const (
	ContentTypeJSON = "application/json; charset=utf-8"
	ContentTypeText = "text/plain; charset=utf-8"
)

func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteJSONError writes an OAuth2 error response
func WriteJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	WriteJSON(w, statusCode, oauthmodel.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}
