package rsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/hhzhhzhhz/mirror-master/log"
)

// ErrUpstreamSyncFailed the transfer tool could not be started or exited non-zero.
var ErrUpstreamSyncFailed = errors.New("upstream sync failed")

const (
	defaultBinary  = "rsync"
	maxOutputBytes = 64 << 10
)

// Request one transfer.
type Request struct {
	Source   string
	Dest     string
	Password string
	Options  entity.OptionSet
}

// Syncer starts transfers. Implemented by Invoker.
type Syncer interface {
	Start(ctx context.Context, req Request) (*Task, error)
}

// Invoker runs the external rsync binary.
type Invoker struct {
	binary string
}

func NewInvoker(binary string) *Invoker {
	if binary == "" {
		binary = defaultBinary
	}
	return &Invoker{binary: binary}
}

// Start spawns the transfer and returns without waiting for it. Cancelling ctx kills the process.
func (i *Invoker) Start(ctx context.Context, req Request) (*Task, error) {
	args := append(Args(req.Options), req.Source, req.Dest)
	cmd := exec.CommandContext(ctx, i.binary, args...)
	cmd.Env = append(os.Environ(), "RSYNC_PASSWORD="+req.Password)
	out := &limitedBuffer{max: maxOutputBytes}
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s cause=%s", ErrUpstreamSyncFailed, i.binary, err.Error())
	}
	log.Logger().Info("Invoker.Start pid=%d source=%s dest=%s args=%s", cmd.Process.Pid, req.Source, req.Dest, strings.Join(args[:len(args)-2], " "))
	return NewTask(func() error {
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("%w: source=%s cause=%s output=%s", ErrUpstreamSyncFailed, req.Source, err.Error(), strings.TrimSpace(out.String()))
		}
		return nil
	}), nil
}

// Run starts the transfer and waits for it.
func Run(ctx context.Context, s Syncer, req Request) error {
	task, err := s.Start(ctx, req)
	if err != nil {
		return err
	}
	return task.Wait()
}

// Task a transfer in flight.
type Task struct {
	done chan struct{}
	err  error
}

// NewTask runs wait on its own goroutine; its result becomes the task result.
func NewTask(wait func() error) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.err = wait()
	}()
	return t
}

// Wait blocks until the transfer ends.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

type limitedBuffer struct {
	mux sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.buf.String()
}
