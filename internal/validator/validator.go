// Package validator chequea los invariantes de una topología completa.
// Se ejecuta después del bootstrap y antes de aceptar cualquier cambio.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dropDatabas3/clusterconf/internal/observability/logger"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// ClusterValidator valida un cluster. No es seguro para uso concurrente;
// se crea uno por validación.
type ClusterValidator struct {
	cluster  *topology.Cluster
	version  topology.Version
	log      *zap.Logger
	warnings []string
}

type Option func(*ClusterValidator)

// WithVersion fija la versión de esquema. Versiones anteriores saltean los
// invariantes nuevos (nombres de stripe obligatorios, UIDs).
func WithVersion(v topology.Version) Option {
	return func(cv *ClusterValidator) { cv.version = v }
}

func WithLogger(l *zap.Logger) Option {
	return func(cv *ClusterValidator) { cv.log = l }
}

func New(c *topology.Cluster, opts ...Option) *ClusterValidator {
	cv := &ClusterValidator{cluster: c, version: topology.CurrentVersion}
	for _, o := range opts {
		o(cv)
	}
	if cv.log == nil {
		cv.log = logger.Named("validator")
	}
	return cv
}

// Validate devuelve el primer invariante violado. Las advertencias no
// fatales quedan en Warnings().
func (cv *ClusterValidator) Validate(state topology.ClusterState) error {
	cv.warnings = nil
	checks := []func(topology.ClusterState) error{
		cv.validateNodeNames,
		cv.validateStripeNames,
		cv.validateAddresses,
		cv.validatePublicAddresses,
		cv.validateBackupDirs,
		cv.validateDataDirs,
		cv.validateSecurity,
		cv.validateFailoverPriority,
		cv.validateRelay,
		cv.validateUIDs,
	}
	for _, check := range checks {
		if err := check(state); err != nil {
			return err
		}
	}
	return nil
}

// Warnings devuelve los diagnósticos de la última validación.
func (cv *ClusterValidator) Warnings() []string {
	return append([]string(nil), cv.warnings...)
}

func malformed(format string, args ...any) error {
	return &MalformedClusterError{Msg: fmt.Sprintf(format, args...)}
}

func (cv *ClusterValidator) validateNodeNames(state topology.ClusterState) error {
	seen := map[string]bool{}
	for si, s := range cv.cluster.Stripes {
		for ni, n := range s.Nodes {
			if n.Name == "" {
				if state == topology.Activated {
					return malformed("Found node without name: node %d in stripe %d (%s)", ni+1, si+1, n.InternalEndpoint())
				}
				continue
			}
			if seen[n.Name] {
				return malformed("Found duplicate node name: '%s'", n.Name)
			}
			seen[n.Name] = true
		}
	}
	return nil
}

func (cv *ClusterValidator) validateStripeNames(state topology.ClusterState) error {
	if !cv.version.AtLeast(topology.V2) {
		return nil
	}
	seen := map[string]bool{}
	for si, s := range cv.cluster.Stripes {
		if s.Name == "" {
			if state == topology.Activated {
				return malformed("Found stripe without name: stripe %d", si+1)
			}
			continue
		}
		if seen[s.Name] {
			return malformed("Found duplicate stripe name: '%s'", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

func (cv *ClusterValidator) validateAddresses(topology.ClusterState) error {
	byAddr := map[string][]string{}
	var order []string
	for _, n := range cv.cluster.Nodes() {
		ep := strings.ToLower(n.InternalEndpoint().String())
		if _, ok := byAddr[ep]; !ok {
			order = append(order, ep)
		}
		byAddr[ep] = append(byAddr[ep], nodeLabel(n))
	}
	for _, ep := range order {
		if names := byAddr[ep]; len(names) > 1 {
			return malformed("Nodes with names: %s have the same address: '%s'", strings.Join(names, ", "), ep)
		}
	}
	return nil
}

func (cv *ClusterValidator) validatePublicAddresses(topology.ClusterState) error {
	for _, n := range cv.cluster.Nodes() {
		if (n.PublicHostname == "") != (n.PublicPort == 0) {
			return malformed("Public address of node '%s' must be configured with both node-public-hostname and node-public-port, or none of them", nodeLabel(n))
		}
	}
	return cv.allOrNone("node-public-hostname, node-public-port", func(n *topology.Node) bool {
		return n.PublicHostname != ""
	})
}

func (cv *ClusterValidator) validateBackupDirs(topology.ClusterState) error {
	return cv.allOrNone("node-backup-dir", func(n *topology.Node) bool { return n.BackupDir != "" })
}

func (cv *ClusterValidator) validateDataDirs(topology.ClusterState) error {
	var ref []string
	var refNode string
	for i, n := range cv.cluster.Nodes() {
		names := keys(n.DataDirs)
		if i == 0 {
			ref, refNode = names, nodeLabel(n)
			continue
		}
		if !equalStrings(ref, names) {
			return malformed("Data directory names need to match across the cluster, but found the following mismatch: [%s] on node '%s' and [%s] on node '%s'",
				strings.Join(ref, ", "), refNode, strings.Join(names, ", "), nodeLabel(n))
		}
	}
	return nil
}

func (cv *ClusterValidator) validateSecurity(topology.ClusterState) error {
	if err := cv.allOrNone("security-dir", func(n *topology.Node) bool { return n.SecurityDir != "" }); err != nil {
		return err
	}
	c := cv.cluster
	nodes := c.Nodes()
	secured := len(nodes) > 0 && nodes[0].SecurityDir != ""
	ssl := c.SecuritySSLTLS != nil && *c.SecuritySSLTLS
	whitelist := c.SecurityWhitelist != nil && *c.SecurityWhitelist

	if !secured {
		for _, n := range nodes {
			if n.SecurityAuditLogDir != "" || n.SecurityLogDir != "" {
				return malformed("security-dir is mandatory for any of the security configuration, but node '%s' has security directories configured without it", nodeLabel(n))
			}
		}
		if c.SecurityAuthc != "" || ssl || whitelist {
			return malformed("security-dir is mandatory for any of the security configuration")
		}
		return nil
	}
	if c.SecurityAuthc == "" && !ssl && !whitelist {
		return malformed("One of security-ssl-tls, security-authc, or security-whitelist is required for security configuration")
	}
	if c.SecurityAuthc == "certificate" && !ssl {
		return malformed("security-ssl-tls is required for security-authc=certificate")
	}
	if err := cv.allOrNone("security-audit-log-dir", func(n *topology.Node) bool { return n.SecurityAuditLogDir != "" }); err != nil {
		return err
	}
	return cv.allOrNone("security-log-dir", func(n *topology.Node) bool { return n.SecurityLogDir != "" })
}

func (cv *ClusterValidator) validateFailoverPriority(state topology.ClusterState) error {
	fp := cv.cluster.FailoverPriority
	if fp == nil {
		if state == topology.Activated && cv.cluster.NodeCount() > 1 {
			return malformed("failover-priority setting is not configured")
		}
		return nil
	}
	if !fp.IsConsistency() {
		return nil
	}
	for i, s := range cv.cluster.Stripes {
		sum := fp.Voters + s.NodeCount()
		if sum%2 == 0 {
			w := fmt.Sprintf("The sum (%d) of voter count (%d) and number of nodes (%d) in stripe %d is an even number. An even-numbered configuration is more likely to experience split-brain situations.",
				sum, fp.Voters, s.NodeCount(), i+1)
			cv.warnings = append(cv.warnings, w)
			cv.log.Warn(w, logger.StripeID(i+1))
		}
	}
	return nil
}

func (cv *ClusterValidator) validateRelay(topology.ClusterState) error {
	var sources, destinations []string
	for _, n := range cv.cluster.Nodes() {
		src := []bool{n.RelaySourceHostname != "", n.RelaySourcePort != 0}
		dst := []bool{n.RelayDestinationHostname != "", n.RelayDestinationPort != 0, n.RelayDestinationGroupPort != 0}
		isSrc, fullSrc := anyAll(src)
		isDst, fullDst := anyAll(dst)
		if isSrc && isDst {
			return malformed("Relay source and relay destination settings are mutually exclusive, but node '%s' has both", nodeLabel(n))
		}
		if isSrc && !fullSrc {
			return malformed("Relay source settings of node '%s' must be configured together: relay-source-hostname, relay-source-port", nodeLabel(n))
		}
		if isDst && !fullDst {
			return malformed("Relay destination settings of node '%s' must be configured together: relay-destination-hostname, relay-destination-port, relay-destination-group-port", nodeLabel(n))
		}
		if isSrc {
			sources = append(sources, nodeLabel(n))
		}
		if isDst {
			destinations = append(destinations, nodeLabel(n))
		}
	}
	if len(sources) > 0 && len(destinations) > 0 {
		return malformed("A cluster cannot contain both relay source and relay destination nodes. Sources: [%s], destinations: [%s]",
			strings.Join(sources, ", "), strings.Join(destinations, ", "))
	}
	return nil
}

func (cv *ClusterValidator) validateUIDs(topology.ClusterState) error {
	if !cv.version.AtLeast(topology.V2) {
		return nil
	}
	owner := map[topology.UID]string{}
	claim := func(uid topology.UID, who string) error {
		if uid.IsZero() {
			return malformed("Missing UID on %s", who)
		}
		if prev, dup := owner[uid]; dup {
			return malformed("Duplicate UID %s used by %s and %s", uid, prev, who)
		}
		owner[uid] = who
		return nil
	}
	if err := claim(cv.cluster.UID, "cluster"); err != nil {
		return err
	}
	for i, s := range cv.cluster.Stripes {
		if err := claim(s.UID, fmt.Sprintf("stripe %d", i+1)); err != nil {
			return err
		}
		for _, n := range s.Nodes {
			if err := claim(n.UID, fmt.Sprintf("node '%s'", nodeLabel(n))); err != nil {
				return err
			}
		}
	}
	return nil
}

// allOrNone exige que pred valga lo mismo para todos los nodos.
func (cv *ClusterValidator) allOrNone(what string, pred func(*topology.Node) bool) error {
	var with, without []string
	for _, n := range cv.cluster.Nodes() {
		if pred(n) {
			with = append(with, nodeLabel(n))
		} else {
			without = append(without, nodeLabel(n))
		}
	}
	if len(with) > 0 && len(without) > 0 {
		return malformed("Nodes: [%s] currently have (%s) configured, while nodes: [%s] do not. This setting must be configured on all nodes or none",
			strings.Join(with, ", "), what, strings.Join(without, ", "))
	}
	return nil
}

func nodeLabel(n *topology.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return n.InternalEndpoint().String()
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func anyAll(bs []bool) (anyTrue, allTrue bool) {
	allTrue = true
	for _, b := range bs {
		anyTrue = anyTrue || b
		allTrue = allTrue && b
	}
	return anyTrue, allTrue
}
