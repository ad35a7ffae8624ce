package setting

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	valid "github.com/asaskevich/govalidator"

	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// valueValidator devuelve la razón (sin el nombre del setting) si v es inválido.
type valueValidator func(v string) error

func identifier(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("must not be empty or blank")
	}
	for _, r := range v {
		if unicode.IsControl(r) {
			return fmt.Errorf("must not contain control characters, but found: '%s'", strconv.Quote(v))
		}
	}
	return nil
}

func port(v string) error {
	p, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("must be a port number between 1 and 65535, but found: '%s'", v)
	}
	return nil
}

func ipv4(v string) error {
	if !valid.IsIPv4(v) {
		return fmt.Errorf("must be a valid IPv4 address, but found: '%s'", v)
	}
	return nil
}

// hostname acepta nombres DNS, IPs o valores con placeholders (se resuelven al arrancar).
func hostname(v string) error {
	if ContainsPlaceholders(v) {
		return nil
	}
	if !valid.IsHost(v) {
		return fmt.Errorf("must be a valid hostname or IP address, but found: '%s'", v)
	}
	return nil
}

func path(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("must not be empty or blank")
	}
	if strings.ContainsRune(v, 0) {
		return fmt.Errorf("must not contain a NUL character, but found: '%s'", strconv.Quote(v))
	}
	return nil
}

func uid(v string) error {
	_, err := topology.ParseUID(v)
	return err
}

func measure(units []string) valueValidator {
	return func(v string) error {
		_, err := topology.ParseMeasure(v, units)
		return err
	}
}

func oneOf(values ...string) valueValidator {
	return func(v string) error {
		for _, a := range values {
			if v == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of [%s], but found: '%s'", strings.Join(values, ", "), v)
	}
}

var boolean = oneOf("true", "false")

func failoverPriority(v string) error {
	_, err := topology.ParseFailoverPriority(v)
	return err
}

// parseMap parsea "k:v(,k:v)*". Cada segmento se recorta; segmentos vacíos o
// sin clave se rechazan. Si una clave se repite gana la última.
func parseMap(v string) (map[string]string, []string, error) {
	out := map[string]string{}
	var order []string
	for _, seg := range strings.Split(v, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return nil, nil, fmt.Errorf("empty segment in '%s'. Expected format: <key>:<value>(,<key>:<value>)*", v)
		}
		i := strings.IndexByte(seg, ':')
		if i < 0 {
			return nil, nil, fmt.Errorf("expected <key>:<value>, but found: '%s'", seg)
		}
		k := strings.TrimSpace(seg[:i])
		if k == "" {
			return nil, nil, fmt.Errorf("<key> is missing in '%s'", seg)
		}
		if _, dup := out[k]; !dup {
			order = append(order, k)
		}
		out[k] = strings.TrimSpace(seg[i+1:])
	}
	return out, order, nil
}

// formatMap es la forma canónica de un mapa: claves ordenadas, "k:v,k:v".
func formatMap(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+m[k])
	}
	return strings.Join(parts, ",")
}
