package server

import (
	"net/http"

	"github.com/sugawarayuuta/sonnet"
)

// writeJSON encodes v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := sonnet.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
