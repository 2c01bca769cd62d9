// Package hub fans vote events out to remote observers registered per
// election.
//
// Delivery is best effort. Each broadcast works on a snapshot of the
// election's observer list, delivers in registration order, and prunes every
// observer that failed once the sweep is over. A periodic health sweep pings
// all observers and prunes the ones that do not answer. A pruned observer is
// gone for good; the remote end has to register again.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"electoral-service/internal/core/domain"
	"electoral-service/internal/core/ports"
	"electoral-service/internal/observability"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSweepInterval   = 30 * time.Second
	DefaultDeliveryTimeout = 5 * time.Second
	DefaultPingParallelism = 8
)

const (
	reasonBroadcast = "broadcast"
	reasonPing      = "ping"
)

type options struct {
	logger          hclog.Logger
	sweepInterval   time.Duration
	deliveryTimeout time.Duration
	pingParallelism int
}

// Option configures a Hub.
type Option func(*options)

func WithLogger(l hclog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSweepInterval sets how often Start pings every observer.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

// WithDeliveryTimeout bounds each delivery and ping.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(o *options) { o.deliveryTimeout = d }
}

// WithPingParallelism bounds concurrent pings during a health sweep.
func WithPingParallelism(n int) Option {
	return func(o *options) { o.pingParallelism = n }
}

// BroadcastResult summarises one broadcast.
type BroadcastResult struct {
	Delivered int
	Pruned    int
}

// Hub is the per-election observer registry. Observers are compared with ==,
// so handles must be comparable (pointers in practice).
type Hub struct {
	mu        sync.RWMutex
	observers map[domain.ElectionID][]ports.Observer

	logger          hclog.Logger
	sweepInterval   time.Duration
	deliveryTimeout time.Duration
	pingParallelism int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a Hub. Call Start to run the periodic health sweep.
func New(opts ...Option) *Hub {
	o := options{
		logger:          hclog.NewNullLogger(),
		sweepInterval:   DefaultSweepInterval,
		deliveryTimeout: DefaultDeliveryTimeout,
		pingParallelism: DefaultPingParallelism,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pingParallelism <= 0 {
		o.pingParallelism = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		observers:       make(map[domain.ElectionID][]ports.Observer),
		logger:          o.logger,
		sweepInterval:   o.sweepInterval,
		deliveryTimeout: o.deliveryTimeout,
		pingParallelism: o.pingParallelism,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Register appends o to the election's list. Registering the same remote
// twice yields two independent entries.
func (h *Hub) Register(o ports.Observer, electionID domain.ElectionID) {
	h.mu.Lock()
	h.observers[electionID] = append(h.observers[electionID], o)
	n := len(h.observers[electionID])
	h.mu.Unlock()

	observability.HubObservers.Inc()
	h.logger.Info("observer registered", "observer", o.ID(), "election", electionID, "count", n)
}

// Unregister removes the first observer of the election whose ID is id.
// It reports whether one was removed.
func (h *Hub) Unregister(id string, electionID domain.ElectionID) bool {
	h.mu.Lock()
	list := h.observers[electionID]
	idx := slices.IndexFunc(list, func(o ports.Observer) bool { return o.ID() == id })
	if idx < 0 {
		h.mu.Unlock()
		return false
	}
	removed := list[idx]
	h.setLocked(electionID, slices.Delete(list, idx, idx+1))
	h.mu.Unlock()

	observability.HubObservers.Dec()
	closeObserver(removed, h.logger)
	h.logger.Info("observer unregistered", "observer", id, "election", electionID)
	return true
}

// ObserverCount returns the number of live observers of an election.
func (h *Hub) ObserverCount(electionID domain.ElectionID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers[electionID])
}

// Broadcast delivers ev to every observer of its election in registration
// order. Failures never stop the sweep; failed observers are pruned after it.
//
// Deliveries do not inherit cancellation from ctx. Each one is bounded by the
// delivery timeout only, so a caller giving up early cannot get live
// observers pruned.
func (h *Hub) Broadcast(ctx context.Context, ev domain.VoteEvent) BroadcastResult {
	h.mu.RLock()
	snapshot := slices.Clone(h.observers[ev.ElectionID])
	h.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	payload := ev.String()
	var failed []ports.Observer
	res := BroadcastResult{}
	for _, o := range snapshot {
		if err := h.deliver(ctx, o, payload); err != nil {
			h.logger.Warn("delivery failed, pruning observer", "observer", o.ID(), "election", ev.ElectionID, "error", err)
			observability.HubDeliveriesTotal.WithLabelValues("failed").Inc()
			failed = append(failed, o)
			continue
		}
		observability.HubDeliveriesTotal.WithLabelValues("ok").Inc()
		res.Delivered++
	}

	if len(failed) > 0 {
		res.Pruned = h.prune(ev.ElectionID, failed, reasonBroadcast)
	}
	return res
}

// HealthSweep pings every observer and prunes the ones that fail. It
// returns how many were pruned. Pings cut short by ctx itself are not
// failures; a cancelled sweep prunes nothing it did not already condemn.
func (h *Hub) HealthSweep(ctx context.Context) int {
	h.mu.RLock()
	snapshot := make(map[domain.ElectionID][]ports.Observer, len(h.observers))
	for e, list := range h.observers {
		snapshot[e] = slices.Clone(list)
	}
	h.mu.RUnlock()

	var mu sync.Mutex
	dead := make(map[domain.ElectionID][]ports.Observer)

	g := new(errgroup.Group)
	g.SetLimit(h.pingParallelism)
	for e, list := range snapshot {
		for _, o := range list {
			e, o := e, o
			g.Go(func() error {
				if err := h.ping(ctx, o); err != nil {
					if ctx.Err() != nil {
						h.logger.Debug("ping interrupted by sweep cancellation", "observer", o.ID(), "election", e)
						return nil
					}
					h.logger.Warn("ping failed, pruning observer", "observer", o.ID(), "election", e, "error", err)
					mu.Lock()
					dead[e] = append(dead[e], o)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	pruned := 0
	for e, list := range dead {
		pruned += h.prune(e, list, reasonPing)
	}
	if pruned > 0 {
		h.logger.Info("health sweep finished", "pruned", pruned)
	}
	return pruned
}

// Start runs HealthSweep every sweep interval until Stop is called or ctx
// is done.
func (h *Hub) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.sweepInterval)
		defer ticker.Stop()

		h.logger.Info("health sweep started", "interval", h.sweepInterval)
		for {
			select {
			case <-ticker.C:
				h.HealthSweep(h.ctx)
			case <-ctx.Done():
				return
			case <-h.ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the health sweep and waits for it to exit.
func (h *Hub) Stop() {
	h.cancel()
	h.wg.Wait()
}

// Close stops the sweep and releases every registered observer.
func (h *Hub) Close() {
	h.once.Do(func() {
		h.Stop()

		h.mu.Lock()
		all := h.observers
		h.observers = make(map[domain.ElectionID][]ports.Observer)
		h.mu.Unlock()

		for _, list := range all {
			for _, o := range list {
				observability.HubObservers.Dec()
				closeObserver(o, h.logger)
			}
		}
	})
}

func (h *Hub) deliver(ctx context.Context, o ports.Observer, payload string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, h.deliveryTimeout)
	defer cancel()
	if err := o.OnVoteReceived(ctx, payload); err != nil {
		return domain.Wrap(domain.KindObserverUnreachable, err, o.ID())
	}
	return nil
}

var errPingRefused = errors.New("ping returned false")

func (h *Hub) ping(ctx context.Context, o ports.Observer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, h.deliveryTimeout)
	defer cancel()
	ok, err := o.Ping(ctx)
	if err != nil {
		return domain.Wrap(domain.KindObserverUnreachable, err, o.ID())
	}
	if !ok {
		return domain.Wrap(domain.KindObserverUnreachable, errPingRefused, o.ID())
	}
	return nil
}

// prune removes each victim once from the election's live list. Victims that
// were already removed concurrently are skipped.
func (h *Hub) prune(electionID domain.ElectionID, victims []ports.Observer, reason string) int {
	var removed []ports.Observer

	h.mu.Lock()
	list := h.observers[electionID]
	for _, v := range victims {
		idx := slices.Index(list, v)
		if idx < 0 {
			continue
		}
		list = slices.Delete(list, idx, idx+1)
		removed = append(removed, v)
	}
	h.setLocked(electionID, list)
	h.mu.Unlock()

	for _, o := range removed {
		observability.HubObservers.Dec()
		observability.HubPrunedTotal.WithLabelValues(reason).Inc()
		closeObserver(o, h.logger)
	}
	return len(removed)
}

func (h *Hub) setLocked(electionID domain.ElectionID, list []ports.Observer) {
	if len(list) == 0 {
		delete(h.observers, electionID)
		return
	}
	h.observers[electionID] = list
}

func closeObserver(o ports.Observer, logger hclog.Logger) {
	c, ok := o.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Debug("closing observer failed", "observer", o.ID(), "error", err)
	}
}
