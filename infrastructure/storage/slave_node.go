package storage

import (
	"context"

	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/jmoiron/sqlx"
)

func NewSlaveNode(xdb *sqlx.DB) SlaveNode {
	return &slaveNode{db: xdb}
}

type slaveNode struct {
	db *sqlx.DB
}

func (s *slaveNode) CreateSlaveNode(ctx context.Context, node *entity.SlaveNode) (int64, error) {
	res, err := s.db.ExecContext(ctx, "insert into slave_node(hostname, port, create_time) values (?, ?, ?)",
		node.Hostname, node.Port, node.CreateTime)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *slaveNode) ExistSlaveNode(ctx context.Context, hostname string, port int) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, "select count(*) from slave_node where hostname = ? and port = ?", hostname, port); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *slaveNode) GetSlaveNode(ctx context.Context, id int64) (*entity.SlaveNode, error) {
	res := &entity.SlaveNode{}
	if err := s.db.GetContext(ctx, res, "select * from slave_node where id = ?", id); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *slaveNode) ListSlaveNodes(ctx context.Context) ([]*entity.SlaveNode, error) {
	var res []*entity.SlaveNode
	if err := s.db.SelectContext(ctx, &res, "select * from slave_node order by id asc"); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *slaveNode) DeleteSlaveNode(ctx context.Context, id int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, "delete from slave_node where id = ?", id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
