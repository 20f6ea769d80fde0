package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

const maxBodyBytes = 1 << 20

var errTrailingData = errors.New("body must contain a single JSON value")

// DecodeJSON reads exactly one JSON value into dst. Unknown fields are
// ignored. Bodies over 1MiB fail as invalid_json.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return domain.ErrInvalidJSON(errors.New("empty body"))
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return domain.ErrInvalidJSON(err)
	}
	if dec.More() {
		return domain.ErrInvalidJSON(errTrailingData)
	}
	return nil
}
