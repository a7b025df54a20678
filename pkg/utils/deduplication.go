package utils

import (
	"sync"
	"time"
)

const (
	cacheSize           = 10
	defaultRotationTime = time.Minute
)

// NewDeduplication remembers keys for ttl. Stop releases the sweeper.
func NewDeduplication(ttl time.Duration) *Deduplication {
	if ttl <= 0 {
		ttl = defaultRotationTime
	}
	d := &Deduplication{
		ttl:   ttl,
		cache: make(map[string]time.Time, cacheSize),
		stop:  make(chan struct{}),
	}
	go d.async()
	return d
}

type Deduplication struct {
	mux   sync.Mutex
	ttl   time.Duration
	cache map[string]time.Time
	stop  chan struct{}
	once  sync.Once
}

// Exist reports whether uid was seen within ttl and records it otherwise.
func (d *Deduplication) Exist(uid string) bool {
	d.mux.Lock()
	defer d.mux.Unlock()
	now := time.Now()
	if ts, ok := d.cache[uid]; ok && now.Sub(ts) <= d.ttl {
		return true
	}
	d.cache[uid] = now
	return false
}

func (d *Deduplication) Stop() {
	d.once.Do(func() { close(d.stop) })
}

func (d *Deduplication) async() {
	tick := time.NewTicker(d.ttl)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			d.clear()
		case <-d.stop:
			return
		}
	}
}

func (d *Deduplication) clear() {
	d.mux.Lock()
	defer d.mux.Unlock()
	now := time.Now()
	for k, ts := range d.cache {
		if now.Sub(ts) > d.ttl {
			delete(d.cache, k)
		}
	}
}
