// Package infrastructure publishes run and slave events to nsqd or RabbitMQ.
package infrastructure

import (
	"fmt"
	"sync"

	"github.com/hhzhhzhhz/mirror-master/infrastructure/rabbitmq"
	"github.com/hhzhhzhhz/mirror-master/log"
	"github.com/hhzhhzhhz/mirror-master/pkg/utils"
	json "github.com/json-iterator/go"
	"github.com/nsqio/go-nsq"
)

const (
	defaultRetry = 3
)

type EventMq interface {
	Publish(topic string, message interface{}) error
	// RetryPublish logs instead of returning the final error.
	RetryPublish(topic string, message interface{})
	Close() error
}

// NewEventMq returns a no-op publisher when nsqdAddr is empty.
func NewEventMq(nsqdAddr string) (EventMq, error) {
	if nsqdAddr == "" {
		return &nopMq{}, nil
	}
	p, err := nsq.NewProducer(nsqdAddr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq.NewProducer addr=%s failed cause=%s", nsqdAddr, err.Error())
	}
	p.SetLoggerLevel(nsq.LogLevelError)
	return &eventMq{addr: nsqdAddr, producer: p}, nil
}

type eventMq struct {
	addr     string
	mux      sync.Mutex
	producer *nsq.Producer
	closed   bool
}

func (e *eventMq) Publish(topic string, message interface{}) error {
	b, err := encode(message)
	if err != nil {
		return err
	}
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.closed {
		return fmt.Errorf("publish topic=%s on closed producer", topic)
	}
	return e.producer.Publish(topic, b)
}

func (e *eventMq) RetryPublish(topic string, message interface{}) {
	if err := utils.Retry(defaultRetry, func() error {
		return e.Publish(topic, message)
	}); err != nil {
		log.Logger().Error("locate=%s Publish failed topic=%s addr=%s cause=%s", utils.Caller(2), topic, e.addr, err.Error())
	}
}

func (e *eventMq) Close() error {
	e.mux.Lock()
	defer e.mux.Unlock()
	if !e.closed {
		e.closed = true
		e.producer.Stop()
	}
	return nil
}

// NewAmqpEventMq publishes to RabbitMQ fanout exchanges named after the topic.
func NewAmqpEventMq(url string) EventMq {
	return &amqpMq{producer: rabbitmq.NewProducer(url)}
}

type amqpMq struct {
	producer *rabbitmq.Producer
}

func (a *amqpMq) Publish(topic string, message interface{}) error {
	b, err := encode(message)
	if err != nil {
		return err
	}
	return a.producer.Publish(topic, b)
}

func (a *amqpMq) RetryPublish(topic string, message interface{}) {
	if err := utils.Retry(defaultRetry, func() error {
		return a.Publish(topic, message)
	}); err != nil {
		log.Logger().Error("locate=%s Publish failed topic=%s broker=amqp cause=%s", utils.Caller(2), topic, err.Error())
	}
}

func (a *amqpMq) Close() error {
	return a.producer.Close()
}

type nopMq struct{}

func (n *nopMq) Publish(topic string, message interface{}) error {
	_, err := encode(message)
	return err
}

func (n *nopMq) RetryPublish(topic string, message interface{}) {
	if err := n.Publish(topic, message); err != nil {
		log.Logger().Warn("nopMq.RetryPublish topic=%s cause=%s", topic, err.Error())
	}
}

func (n *nopMq) Close() error {
	return nil
}

func encode(message interface{}) ([]byte, error) {
	if b, ok := message.([]byte); ok {
		return b, nil
	}
	b, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("json.marshal failed cause: %s", err.Error())
	}
	return b, nil
}
