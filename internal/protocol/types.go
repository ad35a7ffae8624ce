// Package protocol implementa el protocolo de cambio distribuido:
// discover, prepare, commit y rollback de un cambio en todos los nodos de
// un cluster, con resultado todo-o-nada.
//
// Cada nodo expone un Server. El Coordinator (configtool) conduce las
// fases contra todos los nodos a través de un Transport.
package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/clusterconf/internal/change"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// ChangeState es el estado de un cambio en un nodo.
type ChangeState string

const (
	StateProposed   ChangeState = "PROPOSED"
	StateCommitted  ChangeState = "COMMITTED"
	StateRolledBack ChangeState = "ROLLED_BACK"
)

// Record es un cambio tal como lo guarda el ChangeStore. Version es
// correlativa desde 1 y sólo avanza con commits.
type Record struct {
	UUID      string            `json:"uuid"`
	Version   uint64            `json:"version"`
	State     ChangeState       `json:"state"`
	Mutation  change.Mutation   `json:"mutation"`
	Cluster   *topology.Cluster `json:"cluster"`
	User      string            `json:"user,omitempty"`
	Host      string            `json:"host,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Summary   string            `json:"summary"`
}

// ChangeDetails es el resumen del último cambio visto por un nodo.
type ChangeDetails struct {
	UUID      string      `json:"uuid"`
	State     ChangeState `json:"state"`
	Summary   string      `json:"summary"`
	Version   uint64      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
}

// DiscoverResponse describe el estado del protocolo en un nodo.
type DiscoverResponse struct {
	NodeName              string         `json:"nodeName"`
	Endpoint              string         `json:"endpoint"`
	Activated             bool           `json:"activated"`
	RestartRequired       bool           `json:"restartRequired"`
	CurrentVersion        uint64         `json:"currentVersion"`
	HighestVersion        uint64         `json:"highestVersion"`
	MutationCount         int            `json:"mutationCount"`
	LastMutationUser      string         `json:"lastMutationUser,omitempty"`
	LastMutationHost      string         `json:"lastMutationHost,omitempty"`
	LastMutationTimestamp time.Time      `json:"lastMutationTimestamp,omitempty"`
	LatestChange          *ChangeDetails `json:"latestChange,omitempty"`
	InProgress            bool           `json:"inProgress"`
}

type PrepareRequest struct {
	ChangeUUID            string          `json:"changeUuid"`
	ExpectedMutationCount int             `json:"expectedMutationCount"`
	Mutation              change.Mutation `json:"mutation"`
	User                  string          `json:"user,omitempty"`
	Host                  string          `json:"host,omitempty"`
}

// PrepareResponse lleva el NodeContext resultante si el nodo aceptó.
type PrepareResponse struct {
	Accepted    bool                  `json:"accepted"`
	Reason      string                `json:"reason,omitempty"`
	NodeContext *topology.NodeContext `json:"nodeContext,omitempty"`
}

type CommitRequest struct {
	ChangeUUID string `json:"changeUuid"`
}

type RollbackRequest struct {
	ChangeUUID string `json:"changeUuid"`
}

// Ack es la respuesta de commit y rollback.
type Ack struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// History es el historial completo de un nodo más su licencia. Es lo que
// recibe Sync para poner al día a un nodo recién agregado.
type History struct {
	Records []Record `json:"records"`
	License string   `json:"license,omitempty"`
}

var (
	// ErrRejected lo satisfacen todas las RejectionError.
	ErrRejected = errors.New("protocol: change rejected")
	// ErrInconsistent se devuelve cuando discover encuentra nodos con
	// historiales distintos o un cambio en curso.
	ErrInconsistent = errors.New("protocol: cluster is not in a consistent state")
	// ErrRecordNotFound lo devuelven los ChangeStore.
	ErrRecordNotFound = errors.New("protocol: change record not found")
)

// RejectionError es el rechazo de un nodo en alguna fase.
type RejectionError struct {
	Node   string
	Phase  string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected by %s: %s", e.Phase, e.Node, e.Reason)
}

func (e *RejectionError) Is(target error) bool { return target == ErrRejected }

// Outcome es el resultado de Coordinator.Run.
type Outcome struct {
	ChangeUUID string
	Committed  bool
	Rejections []*RejectionError
	// Contexts guarda el NodeContext propuesto por cada nodo que aceptó.
	Contexts map[string]topology.NodeContext
}

const (
	PhaseDiscover = "discover"
	PhasePrepare  = "prepare"
	PhaseCommit   = "commit"
	PhaseRollback = "rollback"
	PhaseSync     = "sync"
)
