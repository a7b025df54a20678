package rabbitmq

import (
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/multierr"
)

const fanout = "fanout"

// Producer publishes to one durable fanout exchange per topic.
// The connection is dialed lazily and redialed after a failed publish.
type Producer struct {
	url      string
	mux      sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
	closed   bool
}

func NewProducer(url string) *Producer {
	return &Producer{url: url, declared: map[string]bool{}}
}

func (p *Producer) reconnect() error {
	p.close()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("amqp.Dial failed cause=%s", err.Error())
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("conn.Channel failed cause=%s", err.Error())
	}
	p.conn = conn
	p.ch = ch
	p.declared = map[string]bool{}
	return nil
}

func (p *Producer) Publish(topic string, body []byte) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return fmt.Errorf("publish topic=%s on closed producer", topic)
	}
	if p.conn == nil || p.conn.IsClosed() {
		if err := p.reconnect(); err != nil {
			return err
		}
	}
	if !p.declared[topic] {
		if err := p.ch.ExchangeDeclare(topic, fanout, true, false, false, false, nil); err != nil {
			p.close()
			return fmt.Errorf("ch.ExchangeDeclare topic=%s failed cause=%s", topic, err.Error())
		}
		p.declared[topic] = true
	}
	err := p.ch.Publish(topic, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		p.close()
		return fmt.Errorf("ch.Publish topic=%s failed cause=%s", topic, err.Error())
	}
	return nil
}

func (p *Producer) close() error {
	var errs error
	if p.ch != nil {
		errs = multierr.Append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = multierr.Append(errs, p.conn.Close())
		p.conn = nil
	}
	return errs
}

func (p *Producer) Close() error {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.closed = true
	return p.close()
}
