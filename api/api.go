package api

import (
	"context"
	goerrors "errors"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/hhzhhzhhz/mirror-master/cron"
	"github.com/hhzhhzhhz/mirror-master/infrastructure/storage"
	"github.com/hhzhhzhhz/mirror-master/log"
	"github.com/hhzhhzhhz/mirror-master/pkg/errors"
	"github.com/hhzhhzhhz/mirror-master/pkg/protocol"
	"github.com/hhzhhzhhz/mirror-master/recipient"
	"github.com/hhzhhzhhz/mirror-master/rsync"
	"github.com/hhzhhzhhz/mirror-master/scheduler"
	json "github.com/json-iterator/go"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

type Options struct {
	// Defaults fill absent rsync option fields on add.
	Defaults rsync.Defaults
	Timeout  time.Duration
}

// Api http handlers of the master.
type Api struct {
	opts      Options
	sched     *scheduler.Scheduler
	store     storage.Factory
	recipient *recipient.Recipient
}

func NewApi(opts Options, sched *scheduler.Scheduler, store storage.Factory, rcp *recipient.Recipient) *Api {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Api{opts: opts, sched: sched, store: store, recipient: rcp}
}

func (a *Api) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), a.opts.Timeout)
}

// decode reads a json body into v. It writes the failure response itself.
func decode(w http.ResponseWriter, r *http.Request, method string, v interface{}) bool {
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		protocol.FailedJson(w, method, errors.BodyReadError, err.Error())
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		protocol.FailedJson(w, method, errors.BodyDecodeError, err.Error())
		return false
	}
	return true
}

// idOf reads ?id= and falls back to {"id"} in a POST body.
func idOf(w http.ResponseWriter, r *http.Request, method string) (string, bool) {
	if id := r.URL.Query().Get("id"); id != "" {
		return id, true
	}
	if r.Method == http.MethodPost {
		req := &struct {
			Id string `json:"id"`
		}{}
		if !decode(w, r, method, req) {
			return "", false
		}
		if req.Id != "" {
			return req.Id, true
		}
	}
	protocol.FailedJson(w, method, errors.JobIdError, "No project id provided")
	return "", false
}

// failed answers with the coded error matching err.
func failed(w http.ResponseWriter, method string, err error) {
	e := codeOf(err)
	if e.Status >= http.StatusInternalServerError {
		log.Logger().Error("Api.%s failed cause=%s", method, err.Error())
	} else {
		log.Logger().Info("Api.%s rejected cause=%s", method, err.Error())
	}
	protocol.FailedJson(w, method, e, err.Error())
}

func codeOf(err error) errors.Error {
	switch {
	case goerrors.Is(err, scheduler.ErrDuplicateJob):
		return errors.DuplicateJobError
	case goerrors.Is(err, scheduler.ErrNotFound):
		return errors.JobNotFoundError
	case goerrors.Is(err, cron.ErrInvalidSchedule):
		return errors.InvalidScheduleError
	case goerrors.Is(err, scheduler.ErrConcurrencyCap):
		return errors.ConcurrencyCapError
	case goerrors.Is(err, rsync.ErrUpstreamSyncFailed):
		return errors.UpstreamSyncError
	case goerrors.Is(err, scheduler.ErrClosed):
		return errors.ServerClosedError
	case goerrors.Is(err, recipient.ErrSlaveNotFound):
		return errors.SlaveNotFoundError
	}
	return errors.InternalError
}
