package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/portalauth"
)

const (
	timeStampLayout = "01-02-2006 03:04:05"

	messageInternal = "AN ERROR OCCURRED WHILE PROCESSING THE REQUEST"
	messageNotFound = "THERE IS NO MAPPING FOR THIS URL"
	messageTooMany  = "TOO MANY REQUESTS. PLEASE TRY AGAIN LATER"
)

// Response is the envelope for every non-entity reply.
type Response struct {
	TimeStamp      string `json:"timeStamp"`
	HTTPStatusCode int    `json:"httpStatusCode"`
	HTTPStatus     string `json:"httpStatus"`
	Reason         string `json:"reason"`
	Message        string `json:"message"`
}

func newResponse(code int, message string) Response {
	reason := strings.ToUpper(http.StatusText(code))
	return Response{
		TimeStamp:      time.Now().Format(timeStampLayout),
		HTTPStatusCode: code,
		HTTPStatus:     strings.ReplaceAll(reason, " ", "_"),
		Reason:         reason,
		Message:        strings.ToUpper(message),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeResponse(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, newResponse(code, message))
}

// deny matches middleware.DenyFunc.
func deny(w http.ResponseWriter, _ *http.Request, status int, message string) {
	writeResponse(w, status, message)
}

// statusFor maps a service error to its status code and client message.
// Anything that is not an account error is reported as an internal error.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, portalauth.ErrAccountLocked), errors.Is(err, portalauth.ErrAccountDisabled):
		return http.StatusUnauthorized, err.Error()
	case portalauth.IsClientError(err):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, messageInternal
	}
}
