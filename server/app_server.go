package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hhzhhzhhz/mirror-master/api"
	"github.com/hhzhhzhhz/mirror-master/log"
	"github.com/hhzhhzhhz/mirror-master/pkg/errors"
	"github.com/hhzhhzhhz/mirror-master/pkg/protocol"
	"github.com/julienschmidt/httprouter"
)

const shutdownTimeout = 5 * time.Second

type tier int

const (
	anyone tier = iota
	privileged
)

func NewAppServer(addr string, a *api.Api, rootUser, rootPass string) *AppServer {
	if rootPass == "" {
		log.Logger().Warn("root_pass is empty, privileged endpoints are open")
	}
	app := &AppServer{addr: addr, api: a, rootUser: rootUser, rootPass: rootPass}
	app.srv = &http.Server{Addr: addr, Handler: app.router()}
	return app
}

type AppServer struct {
	close    int32
	addr     string
	api      *api.Api
	rootUser string
	rootPass string
	srv      *http.Server
}

func (app *AppServer) router() *httprouter.Router {
	a := app.api
	router := httprouter.New()

	// projects
	router.POST("/add_project/", app.proxy(privileged, a.AddProject))
	router.GET("/list_projects/", app.proxy(anyone, a.ListProjects))
	router.POST("/remove_project/", app.proxy(privileged, a.RemoveProject))
	router.GET("/disable_project/", app.proxy(privileged, a.DisableProject))
	router.POST("/disable_project/", app.proxy(privileged, a.DisableProject))
	router.GET("/enable_project/", app.proxy(privileged, a.EnableProject))
	router.POST("/enable_project/", app.proxy(privileged, a.EnableProject))
	router.POST("/update_project/basic/", app.proxy(privileged, a.UpdateBasic))
	router.POST("/update_project/schedule/", app.proxy(privileged, a.UpdateSchedule))
	router.GET("/syncup/", app.proxy(anyone, a.Syncup))
	router.GET("/job_runs/", app.proxy(anyone, a.JobRuns))

	// slaves
	router.POST("/slave_rsync_complete/", app.proxy(anyone, a.SlaveRsyncComplete))
	router.POST("/add_slave/", app.proxy(privileged, a.AddSlave))
	router.GET("/list_slaves/", app.proxy(privileged, a.ListSlaves))
	router.POST("/remove_slave/", app.proxy(privileged, a.RemoveSlave))
	return router
}

func (app *AppServer) Run() error {
	if err := app.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (app *AppServer) Handler() http.Handler {
	return app.srv.Handler
}

func (app *AppServer) proxy(t tier, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if atomic.LoadInt32(&app.close) < 0 {
			protocol.FailedJson(w, r.URL.Path, errors.ServerClosedError, "")
			return
		}
		if t == privileged && !app.authorized(r) {
			log.Logger().Warn("%s %s unauthorized remote=%s", r.Method, r.RequestURI, r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Basic realm="mirror-master"`)
			protocol.FailedJson(w, r.URL.Path, errors.UnauthorizedError, "")
			return
		}
		log.Logger().Info("%s %s", r.Method, r.RequestURI)
		next(w, r, p)
	}
}

func (app *AppServer) authorized(r *http.Request) bool {
	if app.rootPass == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOk := subtle.ConstantTimeCompare([]byte(user), []byte(app.rootUser)) == 1
	passOk := subtle.ConstantTimeCompare([]byte(pass), []byte(app.rootPass)) == 1
	return userOk && passOk
}

func (app *AppServer) Close() error {
	atomic.AddInt32(&app.close, -1)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.srv.Shutdown(ctx)
}
