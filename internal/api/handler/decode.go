package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/agriai/agriai/internal/api/response"
)

// maxJSONBody caps JSON request bodies other than image uploads.
const maxJSONBody = 1 << 20

// decodeJSON decodes the request body into dst, writing a 400 problem and
// returning false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) bool {
	if err := decodeBody(http.MaxBytesReader(w, r.Body, limit), dst); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return false
	}
	return true
}

func decodeBody(body io.Reader, dst interface{}) error {
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return errors.New("invalid JSON body")
	}
	return nil
}
