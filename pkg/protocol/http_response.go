package protocol

import (
	"net/http"

	"github.com/hhzhhzhhz/mirror-master/log"
	"github.com/hhzhhzhhz/mirror-master/pkg/errors"
	"github.com/hhzhhzhhz/mirror-master/pkg/utils"
	json "github.com/json-iterator/go"
)

// HttpResponse envelope of every api answer.
type HttpResponse struct {
	Method  string      `json:"method"`
	Success bool        `json:"success"`
	Code    int64       `json:"code"`
	Cause   string      `json:"cause,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func SuccessMsg(w http.ResponseWriter, method, msg string) error {
	return SuccessJson(w, method, map[string]string{"note": msg})
}

func SuccessJson(w http.ResponseWriter, method string, obj interface{}) error {
	resp := &HttpResponse{Method: method, Success: true, Data: obj}
	return writeResponse(w, http.StatusOK, resp)
}

// FailedJson cause overrides the coded message when non-empty.
func FailedJson(w http.ResponseWriter, method string, e errors.Error, cause string) error {
	if cause == "" {
		cause = e.Cause
	}
	resp := &HttpResponse{Method: method, Success: false, Code: e.Code, Cause: cause}
	status := e.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return writeResponse(w, status, resp)
}

func writeResponse(w http.ResponseWriter, status int, data interface{}) error {
	b, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		log.Logger().Error("locate=%s Response marshal failed cause=%s message=%+v", utils.Caller(3), err.Error(), data)
		w.WriteHeader(http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		log.Logger().Error("locate=%s Response write failed cause=%s message=%s", utils.Caller(3), err.Error(), string(b))
		return err
	}
	return nil
}
