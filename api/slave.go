package api

import (
	"net/http"
	"time"

	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/hhzhhzhhz/mirror-master/log"
	"github.com/hhzhhzhhz/mirror-master/pkg/errors"
	"github.com/hhzhhzhhz/mirror-master/pkg/protocol"
	"github.com/hhzhhzhhz/mirror-master/pkg/verify"
	"github.com/julienschmidt/httprouter"
)

func (a *Api) AddSlave(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	const method = "add_slave"
	req := &entity.AddSlave{}
	if !decode(w, r, method, req) {
		return
	}
	if err := verify.VerifyAddSlave(req); err != nil {
		protocol.FailedJson(w, method, errors.InvalidParameter, err.Error())
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	n, err := a.store.ExistSlaveNode(ctx, req.Hostname, req.Port)
	if err != nil {
		protocol.FailedJson(w, method, errors.SqlQueryError, err.Error())
		return
	}
	if n > 0 {
		protocol.SuccessJson(w, method, map[string]interface{}{"hostname": req.Hostname, "details": "Already added"})
		return
	}
	id, err := a.store.CreateSlaveNode(ctx, &entity.SlaveNode{Hostname: req.Hostname, Port: req.Port, CreateTime: time.Now().Unix()})
	if err != nil {
		protocol.FailedJson(w, method, errors.SqlCreateError, err.Error())
		return
	}
	log.Logger().Info("Api.AddSlave slave_id=%d hostname=%s port=%d", id, req.Hostname, req.Port)
	protocol.SuccessJson(w, method, map[string]interface{}{"id": id, "hostname": req.Hostname, "details": "Added to cluster"})
}

func (a *Api) ListSlaves(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	const method = "list_slaves"
	ctx, cancel := a.ctx(r)
	defer cancel()
	nodes, err := a.store.ListSlaveNodes(ctx)
	if err != nil {
		protocol.FailedJson(w, method, errors.SqlQueryError, err.Error())
		return
	}
	protocol.SuccessJson(w, method, nodes)
}

// RemoveSlave deletes by id, or every node of a hostname (and port when given).
func (a *Api) RemoveSlave(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	const method = "remove_slave"
	req := &entity.RemoveSlave{}
	if !decode(w, r, method, req) {
		return
	}
	if err := verify.VerifyRemoveSlave(req); err != nil {
		protocol.FailedJson(w, method, errors.InvalidParameter, err.Error())
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	ids := []int64{req.Id}
	if req.Id <= 0 {
		nodes, err := a.store.ListSlaveNodes(ctx)
		if err != nil {
			protocol.FailedJson(w, method, errors.SqlQueryError, err.Error())
			return
		}
		ids = ids[:0]
		for _, n := range nodes {
			if n.Hostname == req.Hostname && (req.Port == 0 || n.Port == req.Port) {
				ids = append(ids, n.Id)
			}
		}
	}
	var deleted int64
	for _, id := range ids {
		n, err := a.store.DeleteSlaveNode(ctx, id)
		if err != nil {
			protocol.FailedJson(w, method, errors.SqlDeleteError, err.Error())
			return
		}
		deleted += n
	}
	if deleted == 0 {
		protocol.FailedJson(w, method, errors.SlaveNotFoundError, "")
		return
	}
	log.Logger().Info("Api.RemoveSlave id=%d hostname=%s deleted=%d", req.Id, req.Hostname, deleted)
	protocol.SuccessJson(w, method, map[string]interface{}{"deleted": deleted, "details": "Found and deleted"})
}

// SlaveRsyncComplete inbound notice from a slave that finished pulling.
func (a *Api) SlaveRsyncComplete(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	const method = "slave_rsync_complete"
	req := &entity.SlaveComplete{}
	if !decode(w, r, method, req) {
		return
	}
	if err := verify.VerifySlaveComplete(req); err != nil {
		protocol.FailedJson(w, method, errors.InvalidParameter, err.Error())
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	if err := a.recipient.Complete(ctx, req); err != nil {
		failed(w, method, err)
		return
	}
	protocol.SuccessMsg(w, method, "ok")
}
