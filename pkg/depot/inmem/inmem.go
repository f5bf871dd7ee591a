package inmem

import (
	"fmt"
	"sync"
	"time"

	"github.com/dualsign/SET-simulator/pkg/depot"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// inMemDepot keeps the certificate index in process memory. It is the
// default backend; the simulation makes no cross-run durability promise.
type inMemDepot struct {
	mu      sync.RWMutex
	entries map[string]*depot.IndexEntry
	order   []string
	logger  log.Logger
}

func NewDepot(logger log.Logger) depot.Depot {
	return &inMemDepot{
		entries: make(map[string]*depot.IndexEntry),
		logger:  logger,
	}
}

func (d *inMemDepot) Insert(ie *depot.IndexEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[ie.Serial]; ok {
		err := fmt.Errorf("serial %s already present in certificate index", ie.Serial)
		level.Error(d.logger).Log("err", err)
		return err
	}
	cp := *ie
	d.entries[ie.Serial] = &cp
	d.order = append(d.order, ie.Serial)
	level.Info(d.logger).Log("msg", "Index entry with serial "+ie.Serial+" inserted in certificate index")
	return nil
}

func (d *inMemDepot) Get(serial string) (*depot.IndexEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ie, ok := d.entries[serial]
	if !ok {
		return nil, fmt.Errorf("serial %s not found", serial)
	}
	cp := *ie
	return &cp, nil
}

func (d *inMemDepot) Revoke(serial string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ie, ok := d.entries[serial]
	if !ok {
		return fmt.Errorf("serial %s not found", serial)
	}
	ie.Status = depot.StatusRevoked
	ie.RevocationTime = at
	level.Info(d.logger).Log("msg", "Certificate with serial "+serial+" revoked in certificate index")
	return nil
}

func (d *inMemDepot) List() ([]depot.IndexEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]depot.IndexEntry, 0, len(d.order))
	for _, serial := range d.order {
		out = append(out, *d.entries[serial])
	}
	return out, nil
}
