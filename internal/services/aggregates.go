package services

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/devcamper/bootcamp-api/internal/observability"
	"github.com/devcamper/bootcamp-api/internal/repo/mongodb"
)

// Aggregate names a derived bootcamp field and where it is computed from.
type Aggregate struct {
	Field      string
	Collection string
	Source     string
	Round      func(float64) float64
}

var (
	AverageCost = Aggregate{
		Field:      "averageCost",
		Collection: mongodb.CoursesCollection,
		Source:     "tuition",
		Round:      RoundUpToTen,
	}
	AverageRating = Aggregate{
		Field:      "averageRating",
		Collection: mongodb.ReviewsCollection,
		Source:     "rating",
	}
)

// RoundUpToTen rounds v up to the next multiple of ten.
func RoundUpToTen(v float64) float64 {
	return math.Ceil(v/10) * 10
}

// AverageStore is implemented by mongodb.AveragesRepo.
type AverageStore interface {
	Mean(ctx context.Context, collection, field string, bootcampID primitive.ObjectID) (float64, bool, error)
	SetBootcampField(ctx context.Context, bootcampID primitive.ObjectID, field string, value *float64) error
}

type aggregateJob struct {
	agg        Aggregate
	bootcampID primitive.ObjectID
}

type jobKey struct {
	field      string
	bootcampID primitive.ObjectID
}

func (j aggregateJob) key() jobKey {
	return jobKey{field: j.agg.Field, bootcampID: j.bootcampID}
}

// jobState tracks a key that is queued or running. dirty means a
// notification arrived while it was running.
type jobState struct {
	running bool
	dirty   bool
}

// AggregateMaintainer recomputes derived bootcamp fields after child writes.
// Work happens on background workers so write responses never wait for it.
// At most one recompute per bootcamp and field runs at a time; notifications
// that arrive meanwhile collapse into a single rerun.
type AggregateMaintainer struct {
	store   AverageStore
	log     *logrus.Logger
	prom    *observability.Prom
	workers int
	timeout time.Duration

	jobs chan aggregateJob
	wg   sync.WaitGroup

	pendingMu sync.Mutex
	pending   map[jobKey]*jobState

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	closed  bool
}

func NewAggregateMaintainer(store AverageStore, log *logrus.Logger, prom *observability.Prom, workers, queue int) *AggregateMaintainer {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	return &AggregateMaintainer{
		store:   store,
		log:     log,
		prom:    prom,
		workers: workers,
		timeout: 10 * time.Second,
		jobs:    make(chan aggregateJob, queue),
		pending: make(map[jobKey]*jobState),
		ctx:     context.Background(),
	}
}

// Start launches the workers. Jobs inherit values from ctx but not its
// cancellation, so Stop can still drain.
func (m *AggregateMaintainer) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.closed {
		return
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))

	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for job := range m.jobs {
				m.run(job)
			}
		}()
	}
}

// Stop refuses new jobs, drains the queue and waits for in-flight work.
func (m *AggregateMaintainer) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.jobs)
	started := m.started
	m.mu.Unlock()

	if !started {
		for job := range m.jobs {
			m.run(job)
		}
	}
	m.wg.Wait()
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *AggregateMaintainer) NotifyCourseChanged(bootcampID primitive.ObjectID) {
	m.enqueue(aggregateJob{agg: AverageCost, bootcampID: bootcampID})
}

func (m *AggregateMaintainer) NotifyReviewChanged(bootcampID primitive.ObjectID) {
	m.enqueue(aggregateJob{agg: AverageRating, bootcampID: bootcampID})
}

func (m *AggregateMaintainer) enqueue(job aggregateJob) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		m.log.WithFields(logrus.Fields{
			"aggregate": job.agg.Field,
			"bootcamp":  job.bootcampID.Hex(),
		}).Warn("aggregate maintainer stopped, recompute dropped")
		return
	}

	m.pendingMu.Lock()
	if st, ok := m.pending[job.key()]; ok {
		if st.running {
			st.dirty = true
		}
		m.pendingMu.Unlock()
		return
	}
	m.pending[job.key()] = &jobState{}
	m.pendingMu.Unlock()

	select {
	case m.jobs <- job:
	default:
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.run(job)
		}()
	}
}

// run recomputes job until no notification for its key arrived during the
// last pass.
func (m *AggregateMaintainer) run(job aggregateJob) {
	key := job.key()
	for {
		m.pendingMu.Lock()
		st, ok := m.pending[key]
		if !ok {
			st = &jobState{}
			m.pending[key] = st
		}
		st.running, st.dirty = true, false
		m.pendingMu.Unlock()

		m.runOnce(job)

		m.pendingMu.Lock()
		if st.dirty {
			m.pendingMu.Unlock()
			continue
		}
		delete(m.pending, key)
		m.pendingMu.Unlock()
		return
	}
}

func (m *AggregateMaintainer) runOnce(job aggregateJob) {
	m.mu.RLock()
	base := m.ctx
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(base, m.timeout)
	defer cancel()

	err := m.Recompute(ctx, job.agg, job.bootcampID)
	m.prom.RecordAggregate(job.agg.Field, err)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"aggregate": job.agg.Field,
			"bootcamp":  job.bootcampID.Hex(),
		}).WithError(err).Error("aggregate recompute failed")
	}
}

// Recompute writes the current value of agg for one bootcamp. An empty child
// set clears the field.
func (m *AggregateMaintainer) Recompute(ctx context.Context, agg Aggregate, bootcampID primitive.ObjectID) error {
	mean, ok, err := m.store.Mean(ctx, agg.Collection, agg.Source, bootcampID)
	if err != nil {
		return err
	}
	if !ok {
		return m.store.SetBootcampField(ctx, bootcampID, agg.Field, nil)
	}
	if agg.Round != nil {
		mean = agg.Round(mean)
	}
	return m.store.SetBootcampField(ctx, bootcampID, agg.Field, &mean)
}
