package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
)

// DefaultMinDelay deja terminar el RPC que pidió el restart/stop.
const DefaultMinDelay = time.Second

var (
	ErrDelayTooShort    = errors.New("manager: delay below minimum")
	ErrSchedulerStopped = errors.New("manager: scheduler stopped")
)

// Actions son los efectos que ejecuta el Scheduler.
type Actions struct {
	Restart func()
	Stop    func()
}

type job struct {
	name string
	at   time.Time
	fn   func()
}

// Scheduler ejecuta restart/stop diferidos en un worker dedicado. Una acción
// programada no se cancela; volver a pedirla programa otra.
type Scheduler struct {
	minDelay time.Duration
	actions  Actions
	log      *zap.Logger

	jobs    chan job
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewScheduler(minDelay time.Duration, actions Actions, log *zap.Logger) *Scheduler {
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}
	if log == nil {
		log = logger.Named("scheduler")
	}
	return &Scheduler{minDelay: minDelay, actions: actions, log: log, jobs: make(chan job, 16)}
}

// Start lanza el worker. Las acciones corren en orden de vencimiento, no de
// llegada: un stop corto pedido después de un restart largo no lo espera.
// Termina cuando ctx se cancela; lo pendiente en ese momento se descarta.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var (
			pending []job // ordenado por at
			timer   = time.NewTimer(time.Hour)
		)
		timer.Stop()
		defer timer.Stop()
		rearm := func() {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			if len(pending) > 0 {
				timer.Reset(time.Until(pending[0].at))
			}
		}
		for {
			select {
			case <-ctx.Done():
				s.close()
				if len(pending) > 0 {
					s.log.Info("scheduled actions discarded", logger.Count(len(pending)))
				}
				return
			case j := <-s.jobs:
				i := sort.Search(len(pending), func(i int) bool { return pending[i].at.After(j.at) })
				pending = append(pending, job{})
				copy(pending[i+1:], pending[i:])
				pending[i] = j
				rearm()
			case <-timer.C:
				now := time.Now()
				for len(pending) > 0 && !pending[0].at.After(now) {
					j := pending[0]
					pending = pending[1:]
					s.log.Info("running scheduled action", logger.Op(j.name))
					if j.fn != nil {
						j.fn()
					}
				}
				if len(pending) > 0 {
					timer.Reset(time.Until(pending[0].at))
				}
			}
		}
	}()
}

// Wait espera a que el worker termine.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) Restart(delay time.Duration) error {
	return s.schedule("restart", delay, s.actions.Restart)
}

func (s *Scheduler) Stop(delay time.Duration) error {
	return s.schedule("stop", delay, s.actions.Stop)
}

func (s *Scheduler) schedule(name string, delay time.Duration, fn func()) error {
	if delay < s.minDelay {
		return fmt.Errorf("%w: %s requested in %s, minimum is %s", ErrDelayTooShort, name, delay, s.minDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	select {
	case s.jobs <- job{name: name, at: time.Now().Add(delay), fn: fn}:
	default:
		return fmt.Errorf("%s: too many pending actions", name)
	}
	s.log.Info("action scheduled", logger.Op(name), logger.Duration(delay))
	return nil
}

func (s *Scheduler) close() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}
