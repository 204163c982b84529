package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/pkg/utils"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON document from the request body
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.BadRequest("request body is required")
		}
		return errors.BadRequest("invalid request body: " + err.Error())
	}
	return nil
}

// respondError renders err and logs server-side failures
func respondError(w http.ResponseWriter, log *logger.Logger, err error, msg string) {
	if appErr, ok := errors.As(err); !ok || appErr.StatusCode >= http.StatusInternalServerError {
		log.ErrorWithErr(err, msg)
	}
	utils.WriteAnyError(w, err)
}
