// Package httpapi exposes the services over HTTP with a chi router.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/errs"
)

const messageOK = "success"

// envelope wraps every response body.
type envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type api struct {
	log *zap.Logger
}

func (a *api) respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := encodeEnvelope(w, envelope{Code: status, Message: messageOK, Data: data}); err != nil {
		a.log.Debug("Failed to write response", zap.Error(err))
	}
}

func encodeEnvelope(w io.Writer, e envelope) error {
	return json.NewEncoder(w).Encode(e)
}

// fail answers with the status and caller visible message of err. Internal
// errors are logged and replaced by a generic message.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status_code", status),
			zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	encodeEnvelope(w, envelope{Code: status, Message: errs.Message(err)})
}

func (a *api) decodeJSON(r io.Reader, v interface{}) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		if err == io.EOF {
			return errs.New(errs.EInvalid, "request body is empty")
		}
		return errs.Wrap(err, errs.EInvalid, "malformed JSON body")
	}
	return nil
}
