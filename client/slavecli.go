package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/hhzhhzhhz/mirror-master/pkg/utils"
	json "github.com/json-iterator/go"
)

// ErrSlaveUnreachable the slave did not acknowledge the instruction.
var ErrSlaveUnreachable = errors.New("slave unreachable")

const (
	defaultTimeout = 10 * time.Second
	defaultApiPath = "/sync_from_master/"
)

// SlaveClient tells slaves to pull a project from the master.
type SlaveClient interface {
	SyncFromMaster(ctx context.Context, node *entity.SlaveNode, req *entity.SlaveSyncRequest) error
}

func NewSlaveClient(timeout time.Duration, apiPath string) SlaveClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if apiPath == "" {
		apiPath = defaultApiPath
	}
	if !strings.HasPrefix(apiPath, "/") {
		apiPath = "/" + apiPath
	}
	return &slaveClient{
		timeout: timeout,
		apiPath: apiPath,
		cli:     &http.Client{Timeout: timeout},
	}
}

type slaveClient struct {
	timeout time.Duration
	apiPath string
	cli     *http.Client
}

// SyncFromMaster only waits for the acknowledgement, not for the pull.
func (s *slaveClient) SyncFromMaster(ctx context.Context, node *entity.SlaveNode, req *entity.SlaveSyncRequest) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal slave request slave_id=%d cause=%s", node.Id, err.Error())
	}
	url := SlaveUrl(node, s.apiPath)
	if err := utils.PostJson(ctx, s.cli, url, b); err != nil {
		return fmt.Errorf("%w: url=%s cause=%s", ErrSlaveUnreachable, url, err.Error())
	}
	return nil
}

func SlaveUrl(node *entity.SlaveNode, apiPath string) string {
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(node.Hostname, strconv.Itoa(node.Port)), apiPath)
}
