package ideabox

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var NowFunc func() time.Time = time.Now

// maxBodyBytes caps the size of JSON request bodies.
const maxBodyBytes = 64 << 10

// statusClientClosedRequest is the status recorded for requests whose client went
// away before an answer was written, as nginx does.
const statusClientClosedRequest = 499

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// the status is already sent, nothing useful can be done on failure
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into v, refusing bodies with trailing data.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// parsePositiveID parses an identifier that must be a strictly positive integer.
func parsePositiveID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
