package protocol

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/clusterconf/internal/change"
	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// Coordinator conduce un cambio contra todos los nodos: discover, prepare
// en todos, y commit sólo si todos aceptaron. Si no, rollback.
type Coordinator struct {
	transport Transport
	user      string
	host      string
	log       *zap.Logger
}

type CoordinatorOption func(*Coordinator)

func WithIdentity(user, host string) CoordinatorOption {
	return func(c *Coordinator) { c.user, c.host = user, host }
}

func WithCoordinatorLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = l }
}

func NewCoordinator(t Transport, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{transport: t, log: logger.Named("coordinator")}
	if u, err := user.Current(); err == nil {
		c.user = u.Username
	}
	if h, err := os.Hostname(); err == nil {
		c.host = h
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// fanOut corre fn contra cada endpoint en paralelo. Los errores quedan por
// posición; nunca corta a los demás.
func fanOut(ctx context.Context, endpoints []topology.Endpoint, fn func(ctx context.Context, i int, ep topology.Endpoint) error) []error {
	errs := make([]error, len(endpoints))
	var g errgroup.Group
	for i, ep := range endpoints {
		i, ep := i, ep
		g.Go(func() error {
			errs[i] = fn(ctx, i, ep)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Discover consulta a todos los nodos. Falla si alguno no responde.
func (c *Coordinator) Discover(ctx context.Context, endpoints []topology.Endpoint) ([]DiscoverResponse, error) {
	out := make([]DiscoverResponse, len(endpoints))
	errs := fanOut(ctx, endpoints, func(ctx context.Context, i int, ep topology.Endpoint) error {
		resp, err := c.transport.Discover(ctx, ep)
		if err != nil {
			return fmt.Errorf("discover %s: %w", ep, err)
		}
		out[i] = resp
		return nil
	})
	return out, multierr.Combine(errs...)
}

// CheckConsistency exige que todos los nodos tengan el mismo historial y
// ningún cambio en curso. Devuelve la cantidad de mutaciones común.
func CheckConsistency(endpoints []topology.Endpoint, found []DiscoverResponse) (int, error) {
	var problems []string
	for i, d := range found {
		if d.InProgress {
			problems = append(problems, fmt.Sprintf("node %s has a change in progress (%s)", endpoints[i], latestUUID(d)))
		}
	}
	for i := 1; i < len(found); i++ {
		if found[i].MutationCount != found[0].MutationCount || latestUUID(found[i]) != latestUUID(found[0]) {
			problems = append(problems, fmt.Sprintf("node %s has %d change(s) while node %s has %d",
				endpoints[i], found[i].MutationCount, endpoints[0], found[0].MutationCount))
		}
	}
	if len(problems) > 0 {
		return 0, fmt.Errorf("%w: %s", ErrInconsistent, strings.Join(problems, "; "))
	}
	if len(found) == 0 {
		return 0, nil
	}
	return found[0].MutationCount, nil
}

func latestUUID(d DiscoverResponse) string {
	if d.LatestChange == nil || d.LatestChange.State != StateCommitted {
		return ""
	}
	return d.LatestChange.UUID
}

// Run aplica ch en todos los endpoints con resultado todo-o-nada. Con
// rechazos devuelve un error que satisface errors.Is(err, ErrRejected).
func (c *Coordinator) Run(ctx context.Context, endpoints []topology.Endpoint, ch change.Change) (Outcome, error) {
	if len(endpoints) == 0 {
		return Outcome{}, fmt.Errorf("protocol: no nodes to send the change to")
	}
	found, err := c.Discover(ctx, endpoints)
	if err != nil {
		return Outcome{}, err
	}
	count, err := CheckConsistency(endpoints, found)
	if err != nil {
		return Outcome{}, err
	}
	mutation, err := change.Wrap(ch)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{ChangeUUID: uuid.NewString(), Contexts: make(map[string]topology.NodeContext)}
	log := c.log.With(logger.ChangeID(out.ChangeUUID), logger.String("summary", ch.Summary()))
	log.Info("preparing change", logger.Count(len(endpoints)))

	req := PrepareRequest{
		ChangeUUID:            out.ChangeUUID,
		ExpectedMutationCount: count,
		Mutation:              mutation,
		User:                  c.user,
		Host:                  c.host,
	}
	responses := make([]PrepareResponse, len(endpoints))
	errs := fanOut(ctx, endpoints, func(ctx context.Context, i int, ep topology.Endpoint) error {
		resp, err := c.transport.Prepare(ctx, ep, req)
		responses[i] = resp
		return err
	})
	for i, ep := range endpoints {
		switch {
		case errs[i] != nil:
			out.Rejections = append(out.Rejections, &RejectionError{Node: ep.String(), Phase: PhasePrepare, Reason: errs[i].Error()})
		case !responses[i].Accepted:
			out.Rejections = append(out.Rejections, &RejectionError{Node: ep.String(), Phase: PhasePrepare, Reason: responses[i].Reason})
		case responses[i].NodeContext != nil:
			out.Contexts[ep.String()] = *responses[i].NodeContext
		}
	}

	if len(out.Rejections) > 0 {
		log.Warn("change rejected, rolling back", logger.Count(len(out.Rejections)))
		rbErr := c.rollback(ctx, endpoints, out.ChangeUUID)
		return out, multierr.Append(rejections(out.Rejections), rbErr)
	}

	ackErrs := fanOut(ctx, endpoints, func(ctx context.Context, _ int, ep topology.Endpoint) error {
		ack, err := c.transport.Commit(ctx, ep, CommitRequest{ChangeUUID: out.ChangeUUID})
		if err != nil {
			return &RejectionError{Node: ep.String(), Phase: PhaseCommit, Reason: err.Error()}
		}
		if !ack.Accepted {
			return &RejectionError{Node: ep.String(), Phase: PhaseCommit, Reason: ack.Reason}
		}
		return nil
	})
	var failed []topology.Endpoint
	for i, e := range ackErrs {
		if e != nil {
			out.Rejections = append(out.Rejections, e.(*RejectionError))
			failed = append(failed, endpoints[i])
		}
	}
	if len(failed) > 0 {
		// Los nodos que no confirmaron descartan el cambio; los que sí
		// confirmaron quedan adelantados y discover lo reportará.
		log.Error("commit could not be completed", logger.Count(len(failed)))
		rbErr := c.rollback(ctx, failed, out.ChangeUUID)
		return out, multierr.Append(rejections(out.Rejections), rbErr)
	}

	out.Committed = true
	log.Info("change committed")
	return out, nil
}

func (c *Coordinator) rollback(ctx context.Context, endpoints []topology.Endpoint, changeUUID string) error {
	errs := fanOut(ctx, endpoints, func(ctx context.Context, _ int, ep topology.Endpoint) error {
		ack, err := c.transport.Rollback(ctx, ep, RollbackRequest{ChangeUUID: changeUUID})
		if err != nil {
			return fmt.Errorf("rollback %s: %w", ep, err)
		}
		if !ack.Accepted {
			return fmt.Errorf("rollback %s: %s", ep, ack.Reason)
		}
		return nil
	})
	return multierr.Combine(errs...)
}

func rejections(rs []*RejectionError) error {
	errs := make([]error, 0, len(rs))
	for _, r := range rs {
		errs = append(errs, r)
	}
	return multierr.Combine(errs...)
}
