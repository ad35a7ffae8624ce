package setting

import (
	"net"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Placeholders soportados en defaults y valores.
//
//	%h  hostname local
//	%c  hostname canónico
//	%i  IP local
//	%H  home del usuario
//	%%  '%' literal
var placeholderNames = map[byte]string{
	'h': "hostname",
	'c': "canonical hostname",
	'i': "ip address",
	'H': "user home",
}

// ContainsPlaceholders indica si s contiene algún placeholder sin resolver.
func ContainsPlaceholders(s string) bool {
	for i := 0; i < len(s)-1; i++ {
		if s[i] != '%' {
			continue
		}
		if s[i+1] == '%' {
			i++
			continue
		}
		if _, ok := placeholderNames[s[i+1]]; ok {
			return true
		}
	}
	return false
}

// Substitutor resuelve placeholders. Debe ser idempotente y sin efectos
// laterales salvo logging.
type Substitutor interface {
	Substitute(s string) string
}

// SubstitutorFunc adapta una función.
type SubstitutorFunc func(string) string

func (f SubstitutorFunc) Substitute(s string) string { return f(s) }

// HostSubstitutor resuelve contra el host local. Los valores se calculan
// una sola vez.
type HostSubstitutor struct {
	once   sync.Once
	values map[byte]string
	// Resolve permite reemplazar la resolución (tests).
	Resolve func(p byte) string
}

func NewSubstitutor() *HostSubstitutor { return &HostSubstitutor{} }

func (h *HostSubstitutor) lookup(p byte) string {
	h.once.Do(func() {
		h.values = map[byte]string{}
		resolve := h.Resolve
		if resolve == nil {
			resolve = resolveLocal
		}
		for k := range placeholderNames {
			h.values[k] = resolve(k)
		}
	})
	return h.values[p]
}

func (h *HostSubstitutor) Substitute(s string) string {
	return substitute(s, func(p byte) (string, bool) {
		if _, ok := placeholderNames[p]; !ok {
			return "", false
		}
		return h.lookup(p), true
	})
}

// LoggingSubstitutor delega y registra sólo los placeholders efectivamente usados.
type LoggingSubstitutor struct {
	Delegate Substitutor
	Log      *zap.Logger

	mu   sync.Mutex
	used map[string]string
}

func (l *LoggingSubstitutor) Substitute(s string) string {
	if !ContainsPlaceholders(s) {
		return s
	}
	out := l.Delegate.Substitute(s)
	if out != s {
		l.mu.Lock()
		if l.used == nil {
			l.used = map[string]string{}
		}
		if _, seen := l.used[s]; !seen && l.Log != nil {
			l.Log.Info("placeholder substituted", zap.String("from", s), zap.String("to", out))
		}
		l.used[s] = out
		l.mu.Unlock()
	}
	return out
}

// Used devuelve las sustituciones realizadas (entrada → resultado).
func (l *LoggingSubstitutor) Used() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]string, len(l.used))
	for k, v := range l.used {
		out[k] = v
	}
	return out
}

func substitute(s string, lookup func(p byte) (string, bool)) string {
	if !strings.ContainsRune(s, '%') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '%' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		next := s[i+1]
		if next == '%' {
			// se preserva "%%" para que la sustitución sea idempotente
			b.WriteString("%%")
			i++
			continue
		}
		if v, ok := lookup(next); ok {
			b.WriteString(v)
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func resolveLocal(p byte) string {
	switch p {
	case 'h':
		if h, err := os.Hostname(); err == nil {
			return h
		}
		return "localhost"
	case 'c':
		h, err := os.Hostname()
		if err != nil {
			return "localhost"
		}
		if cname, err := net.LookupCNAME(h); err == nil && cname != "" {
			return strings.TrimSuffix(cname, ".")
		}
		return h
	case 'i':
		if addrs, err := net.InterfaceAddrs(); err == nil {
			for _, a := range addrs {
				if ipn, ok := a.(*net.IPNet); ok && !ipn.IP.IsLoopback() && ipn.IP.To4() != nil {
					return ipn.IP.String()
				}
			}
		}
		return "127.0.0.1"
	case 'H':
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return "."
	}
	return ""
}
