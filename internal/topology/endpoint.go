package topology

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Endpoint es un par host:port.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) IsZero() bool { return e.Host == "" && e.Port == 0 }

// Equal compara host (case-insensitive) y puerto.
func (e Endpoint) Equal(o Endpoint) bool {
	return e.Port == o.Port && strings.EqualFold(e.Host, o.Host)
}

// ParseEndpoint parsea "host:port". Sin puerto usa defaultPort.
func ParseEndpoint(s string, defaultPort int) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, fmt.Errorf("empty address")
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// sin puerto
		if defaultPort <= 0 {
			return Endpoint{}, fmt.Errorf("invalid address '%s': %v", s, err)
		}
		return Endpoint{Host: s, Port: defaultPort}, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("invalid port in address '%s'", s)
	}
	return Endpoint{Host: host, Port: port}, nil
}
