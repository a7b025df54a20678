package recipient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/hhzhhzhhz/mirror-master/infrastructure"
	"github.com/hhzhhzhhz/mirror-master/infrastructure/storage"
	"github.com/hhzhhzhhz/mirror-master/log"
	"github.com/hhzhhzhhz/mirror-master/pkg/utils"
)

// ErrSlaveNotFound the reporting slave is not registered.
var ErrSlaveNotFound = errors.New("slave not found")

const dedupWindow = 10 * time.Minute

type Store interface {
	GetSlaveNode(ctx context.Context, id int64) (*entity.SlaveNode, error)
	CreateSlaveSyncLog(ctx context.Context, l *entity.SlaveSyncLog) (int64, error)
}

// Recipient receives completion notices from slaves.
type Recipient struct {
	store Store
	mq    infrastructure.EventMq
	topic string
	dedup *utils.Deduplication
	now   func() time.Time
}

func NewRecipient(store Store, mq infrastructure.EventMq, topic string) *Recipient {
	return &Recipient{
		store: store,
		mq:    mq,
		topic: topic,
		dedup: utils.NewDeduplication(dedupWindow),
		now:   time.Now,
	}
}

// Complete records that a slave finished pulling a project. A repeated notice
// for the same slave, project and run is accepted and ignored.
func (r *Recipient) Complete(ctx context.Context, msg *entity.SlaveComplete) error {
	node, err := r.store.GetSlaveNode(ctx, msg.SlaveId)
	if err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("%w: slave_id=%d", ErrSlaveNotFound, msg.SlaveId)
		}
		return fmt.Errorf("query slave_id=%d failed cause=%s", msg.SlaveId, err.Error())
	}
	if msg.RunId != "" && r.dedup.Exist(fmt.Sprintf("%d/%s/%s", msg.SlaveId, msg.Project, msg.RunId)) {
		log.Logger().Debug("Recipient.Complete duplicate slave_id=%d project=%s run_id=%s", msg.SlaveId, msg.Project, msg.RunId)
		return nil
	}
	log.Logger().Info("SlaveNode %s synced %s", node.Hostname, msg.Project)
	now := r.now().Unix()
	if _, err := r.store.CreateSlaveSyncLog(ctx, &entity.SlaveSyncLog{
		SlaveId:    node.Id,
		Hostname:   node.Hostname,
		Project:    msg.Project,
		JobId:      msg.JobId,
		RunId:      msg.RunId,
		CreateTime: now,
	}); err != nil {
		log.Logger().Warn("Recipient.Complete audit slave_id=%d project=%s failed cause=%s", msg.SlaveId, msg.Project, err.Error())
	}
	if r.topic != "" {
		r.mq.RetryPublish(r.topic, &entity.SlaveEvent{Type: entity.SlaveCompleted, Hostname: node.Hostname, Complete: msg, Time: now})
	}
	return nil
}

func (r *Recipient) Close() error {
	r.dedup.Stop()
	return nil
}
