package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

// apiError is the body of every non-2xx response.
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError sends an apiError. code is a stable machine-readable key and may be empty.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: message, Code: code})
}

// allowMethods answers 405 with an Allow header unless r uses one of methods.
func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	return false
}

// maxBodyBytes caps operator request bodies; the largest is a single ticker.
const maxBodyBytes = 64 << 10

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// communityPath splits /api/communities/{id}/{rest...}. ok is false when the
// id or the resource is missing.
func communityPath(path string) (community string, rest []string, ok bool) {
	trimmed := strings.Trim(strings.TrimPrefix(path, communitiesPrefix), "/")
	if trimmed == "" {
		return "", nil, false
	}
	parts := strings.Split(trimmed, "/")
	for _, p := range parts {
		if p == "" {
			return "", nil, false
		}
	}
	if len(parts) < 2 {
		return "", nil, false
	}
	return parts[0], parts[1:], true
}
