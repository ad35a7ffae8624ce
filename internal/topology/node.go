package topology

// Node es un servidor del cluster. Pertenece exclusivamente a su Stripe.
type Node struct {
	UID                       UID               `json:"uid,omitempty"`
	Name                      string            `json:"name,omitempty"`
	Hostname                  string            `json:"hostname,omitempty"`
	Port                      int               `json:"port,omitempty"`
	GroupPort                 int               `json:"groupPort,omitempty"`
	BindAddress               string            `json:"bindAddress,omitempty"`
	GroupBindAddress          string            `json:"groupBindAddress,omitempty"`
	PublicHostname            string            `json:"publicHostname,omitempty"`
	PublicPort                int               `json:"publicPort,omitempty"`
	MetadataDir               string            `json:"metadataDir,omitempty"`
	LogDir                    string            `json:"logDir,omitempty"`
	BackupDir                 string            `json:"backupDir,omitempty"`
	SecurityDir               string            `json:"securityDir,omitempty"`
	SecurityAuditLogDir       string            `json:"securityAuditLogDir,omitempty"`
	SecurityLogDir            string            `json:"securityLogDir,omitempty"`
	DataDirs                  map[string]string `json:"dataDirs,omitempty"`
	TCProperties              map[string]string `json:"tcProperties,omitempty"`
	LoggerOverrides           map[string]string `json:"loggerOverrides,omitempty"`
	RelaySourceHostname       string            `json:"relaySourceHostname,omitempty"`
	RelaySourcePort           int               `json:"relaySourcePort,omitempty"`
	RelayDestinationHostname  string            `json:"relayDestinationHostname,omitempty"`
	RelayDestinationPort      int               `json:"relayDestinationPort,omitempty"`
	RelayDestinationGroupPort int               `json:"relayDestinationGroupPort,omitempty"`
}

func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.DataDirs = cloneMap(n.DataDirs)
	c.TCProperties = cloneMap(n.TCProperties)
	c.LoggerOverrides = cloneMap(n.LoggerOverrides)
	return &c
}

// InternalEndpoint es la dirección usada entre nodos del cluster.
func (n *Node) InternalEndpoint() Endpoint {
	return Endpoint{Host: n.Hostname, Port: n.Port}
}

// PublicEndpoint devuelve la dirección pública si está configurada completa.
func (n *Node) PublicEndpoint() (Endpoint, bool) {
	if n.PublicHostname == "" || n.PublicPort == 0 {
		return Endpoint{}, false
	}
	return Endpoint{Host: n.PublicHostname, Port: n.PublicPort}, true
}

// Endpoint prefiere la dirección pública si existe.
func (n *Node) Endpoint() Endpoint {
	if ep, ok := n.PublicEndpoint(); ok {
		return ep
	}
	return n.InternalEndpoint()
}

func (n *Node) HasEndpoint(ep Endpoint) bool {
	if n.InternalEndpoint().Equal(ep) {
		return true
	}
	pub, ok := n.PublicEndpoint()
	return ok && pub.Equal(ep)
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
