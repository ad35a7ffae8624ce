package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// Transport lleva las fases del protocolo a un nodo identificado por su
// dirección interna.
type Transport interface {
	Discover(ctx context.Context, ep topology.Endpoint) (DiscoverResponse, error)
	Prepare(ctx context.Context, ep topology.Endpoint, req PrepareRequest) (PrepareResponse, error)
	Commit(ctx context.Context, ep topology.Endpoint, req CommitRequest) (Ack, error)
	Rollback(ctx context.Context, ep topology.Endpoint, req RollbackRequest) (Ack, error)
	// Topology devuelve la vista runtime (o upcoming) del nodo.
	Topology(ctx context.Context, ep topology.Endpoint, upcoming bool) (topology.NodeContext, error)
	History(ctx context.Context, ep topology.Endpoint) (History, error)
	Sync(ctx context.Context, ep topology.Endpoint, h History) (Ack, error)
}

// ErrUnknownNode lo devuelve LocalTransport para direcciones no registradas.
var ErrUnknownNode = fmt.Errorf("protocol: unknown node")

// LocalTransport conecta con Servers del mismo proceso.
type LocalTransport struct {
	mu      sync.RWMutex
	servers map[string]*Server
}

func NewLocalTransport() *LocalTransport {
	return &LocalTransport{servers: make(map[string]*Server)}
}

func endpointKey(ep topology.Endpoint) string { return strings.ToLower(ep.String()) }

func (t *LocalTransport) Register(ep topology.Endpoint, s *Server) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.servers[endpointKey(ep)] = s
}

func (t *LocalTransport) server(ep topology.Endpoint) (*Server, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.servers[endpointKey(ep)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, ep)
	}
	return s, nil
}

func (t *LocalTransport) Discover(ctx context.Context, ep topology.Endpoint) (DiscoverResponse, error) {
	s, err := t.server(ep)
	if err != nil {
		return DiscoverResponse{}, err
	}
	return s.Discover(ctx)
}

func (t *LocalTransport) Prepare(ctx context.Context, ep topology.Endpoint, req PrepareRequest) (PrepareResponse, error) {
	s, err := t.server(ep)
	if err != nil {
		return PrepareResponse{}, err
	}
	return s.Prepare(ctx, req), nil
}

func (t *LocalTransport) Commit(ctx context.Context, ep topology.Endpoint, req CommitRequest) (Ack, error) {
	s, err := t.server(ep)
	if err != nil {
		return Ack{}, err
	}
	return s.Commit(ctx, req), nil
}

func (t *LocalTransport) Rollback(ctx context.Context, ep topology.Endpoint, req RollbackRequest) (Ack, error) {
	s, err := t.server(ep)
	if err != nil {
		return Ack{}, err
	}
	return s.Rollback(ctx, req), nil
}

func (t *LocalTransport) Topology(_ context.Context, ep topology.Endpoint, upcoming bool) (topology.NodeContext, error) {
	s, err := t.server(ep)
	if err != nil {
		return topology.NodeContext{}, err
	}
	if upcoming {
		return s.Topology().UpcomingNodeContext(), nil
	}
	return s.Topology().RuntimeNodeContext(), nil
}

func (t *LocalTransport) History(ctx context.Context, ep topology.Endpoint) (History, error) {
	s, err := t.server(ep)
	if err != nil {
		return History{}, err
	}
	return s.History(ctx)
}

func (t *LocalTransport) Sync(ctx context.Context, ep topology.Endpoint, h History) (Ack, error) {
	s, err := t.server(ep)
	if err != nil {
		return Ack{}, err
	}
	return s.Sync(ctx, h), nil
}

// HTTPTransport habla JSON con la API HTTP de cada nodo.
type HTTPTransport struct {
	Client *http.Client
	Scheme string
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTransport{Client: &http.Client{Timeout: timeout}, Scheme: "http"}
}

// remoteError es el cuerpo de error que devuelve la API de un nodo.
type remoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (t *HTTPTransport) url(ep topology.Endpoint, path string) string {
	scheme := t.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + ep.String() + path
}

func (t *HTTPTransport) do(ctx context.Context, method, url string, body, out any) error {
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var re remoteError
		if json.NewDecoder(resp.Body).Decode(&re) == nil && re.Message != "" {
			if re.Detail != "" {
				return fmt.Errorf("http %s: %d %s: %s", url, resp.StatusCode, re.Message, re.Detail)
			}
			return fmt.Errorf("http %s: %d %s", url, resp.StatusCode, re.Message)
		}
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (t *HTTPTransport) Discover(ctx context.Context, ep topology.Endpoint) (DiscoverResponse, error) {
	var out DiscoverResponse
	err := t.do(ctx, http.MethodGet, t.url(ep, "/v1/discover"), nil, &out)
	return out, err
}

func (t *HTTPTransport) Prepare(ctx context.Context, ep topology.Endpoint, req PrepareRequest) (PrepareResponse, error) {
	var out PrepareResponse
	err := t.do(ctx, http.MethodPost, t.url(ep, "/v1/protocol/prepare"), req, &out)
	return out, err
}

func (t *HTTPTransport) Commit(ctx context.Context, ep topology.Endpoint, req CommitRequest) (Ack, error) {
	var out Ack
	err := t.do(ctx, http.MethodPost, t.url(ep, "/v1/protocol/commit"), req, &out)
	return out, err
}

func (t *HTTPTransport) Rollback(ctx context.Context, ep topology.Endpoint, req RollbackRequest) (Ack, error) {
	var out Ack
	err := t.do(ctx, http.MethodPost, t.url(ep, "/v1/protocol/rollback"), req, &out)
	return out, err
}

func (t *HTTPTransport) Topology(ctx context.Context, ep topology.Endpoint, upcoming bool) (topology.NodeContext, error) {
	which := "runtime"
	if upcoming {
		which = "upcoming"
	}
	var out topology.NodeContext
	err := t.do(ctx, http.MethodGet, t.url(ep, "/v1/topology/"+which), nil, &out)
	return out, err
}

func (t *HTTPTransport) History(ctx context.Context, ep topology.Endpoint) (History, error) {
	var out History
	err := t.do(ctx, http.MethodGet, t.url(ep, "/v1/changes"), nil, &out)
	return out, err
}

func (t *HTTPTransport) Sync(ctx context.Context, ep topology.Endpoint, h History) (Ack, error) {
	var out Ack
	err := t.do(ctx, http.MethodPost, t.url(ep, "/v1/protocol/sync"), h, &out)
	return out, err
}

// ScheduleRequest es el cuerpo de /v1/restart y /v1/stop.
type ScheduleRequest struct {
	DelayMs int64 `json:"delayMs"`
}

// Restart pide al nodo reiniciarse tras delay.
func (t *HTTPTransport) Restart(ctx context.Context, ep topology.Endpoint, delay time.Duration) error {
	return t.do(ctx, http.MethodPost, t.url(ep, "/v1/restart"), ScheduleRequest{DelayMs: delay.Milliseconds()}, nil)
}

// Stop pide al nodo detenerse tras delay.
func (t *HTTPTransport) Stop(ctx context.Context, ep topology.Endpoint, delay time.Duration) error {
	return t.do(ctx, http.MethodPost, t.url(ep, "/v1/stop"), ScheduleRequest{DelayMs: delay.Milliseconds()}, nil)
}
