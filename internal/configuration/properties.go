package configuration

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseProperties lee un archivo plano "key=value". Ignora líneas vacías y
// comentarios ('#' o '!'). Una clave repetida pisa a la anterior; order
// conserva la primera aparición de cada clave.
func ParseProperties(r io.Reader) (map[string]string, []string, error) {
	props := map[string]string{}
	var order []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' || text[0] == '!' {
			continue
		}
		k, v, ok := strings.Cut(text, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, nil, fmt.Errorf("line %d: expected <key>=<value>, but found: '%s'", line, text)
		}
		if _, seen := props[k]; !seen {
			order = append(order, k)
		}
		props[k] = strings.TrimSpace(v)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return props, order, nil
}

// WriteProperties escribe los registros en forma canónica, uno por línea.
func WriteProperties(w io.Writer, cs []Configuration) error {
	bw := bufio.NewWriter(w)
	for _, c := range cs {
		if _, err := bw.WriteString(c.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FromProperties parsea cada par como una dirección con valor.
func FromProperties(props map[string]string, order []string) ([]Configuration, error) {
	out := make([]Configuration, 0, len(order))
	for _, k := range order {
		c, err := ValueOf(k + "=" + props[k])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
