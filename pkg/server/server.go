package server

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
)

// Program a service with a three step lifecycle.
type Program interface {
	Init() error
	Start() error
	Stop() error
}

// Run drives p until one of sig arrives, SIGINT and SIGTERM by default.
func Run(p Program, sig ...os.Signal) error {
	if err := p.Init(); err != nil {
		return err
	}
	if len(sig) == 0 {
		sig = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig...)
	defer signal.Stop(ch)
	if err := p.Start(); err != nil {
		return multierr.Append(err, p.Stop())
	}
	<-ch
	return p.Stop()
}
