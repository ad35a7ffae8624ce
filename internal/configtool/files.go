package configtool

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/clusterconf/internal/bootstrap"
	"github.com/dropDatabas3/clusterconf/internal/configuration"
	"github.com/dropDatabas3/clusterconf/internal/setting"
	"github.com/dropDatabas3/clusterconf/internal/topology"
	"github.com/dropDatabas3/clusterconf/internal/util/atomicwrite"
	"github.com/dropDatabas3/clusterconf/internal/validator"
)

const (
	formatProperties = "properties"
	formatYAML       = "yaml"
)

// loadClusterFile arma un cluster desde un archivo de propiedades. Con
// imported=true acepta UIDs (archivos generados por export).
func (t *tool) loadClusterFile(path string, imported bool) (*topology.Cluster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	props, _, err := configuration.ParseProperties(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	op := setting.OpConfig
	if imported {
		op = setting.OpImport
	}
	return bootstrap.FromProperties(props, bootstrap.Options{
		Operation:   op,
		Substitutor: setting.NewSubstitutor(),
		Logger:      t.log,
	})
}

// writeExport vuelca la configuración en el formato pedido. En YAML es un
// mapping plano dirección → valor que conserva el orden canónico.
func writeExport(w io.Writer, cs []configuration.Configuration, format string) error {
	switch format {
	case "", formatProperties:
		return configuration.WriteProperties(w, cs)
	case formatYAML:
		doc := &yaml.Node{Kind: yaml.MappingNode}
		for _, c := range cs {
			v, _ := c.Value()
			doc.Content = append(doc.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: c.Address()},
				&yaml.Node{Kind: yaml.ScalarNode, Value: v, Style: yaml.DoubleQuotedStyle},
			)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format '%s' (expected %s or %s)", format, formatProperties, formatYAML)
	}
}

func (t *tool) exportCommand() *cobra.Command {
	var (
		node    string
		output  string
		format  string
		runtime bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Exporta la configuración del cluster de un nodo",
		RunE: func(cmd *cobra.Command, args []string) error {
			if node == "" {
				return fmt.Errorf("-s es requerido")
			}
			if format != formatProperties && format != formatYAML {
				return fmt.Errorf("unknown format '%s' (expected %s or %s)", format, formatProperties, formatYAML)
			}
			ep, err := parseEndpoint(node)
			if err != nil {
				return err
			}
			ctx, cancel := t.context(cmd)
			defer cancel()
			nc, err := t.transport.Topology(ctx, ep, !runtime)
			if err != nil {
				return fmt.Errorf("read topology of %s: %w", ep, err)
			}
			cs := configuration.Export(nc.Cluster())
			if output == "" {
				return writeExport(cmd.OutOrStdout(), cs, format)
			}
			if err := atomicwrite.Write(output, 0o644, func(w io.Writer) error {
				return writeExport(w, cs, format)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d setting(s) to %s\n", len(cs), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&node, "node", "s", "", "Nodo a exportar (host[:port])")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Archivo de salida (por defecto stdout)")
	cmd.Flags().StringVar(&format, "format", formatProperties, "Formato: properties|yaml")
	cmd.Flags().BoolVar(&runtime, "runtime", false, "Exportar la topología runtime en vez de la upcoming")
	return cmd
}

func (t *tool) validateCommand() *cobra.Command {
	var (
		file      string
		imported  bool
		activated bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Valida un archivo de configuración sin contactar nodos",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("-f es requerido")
			}
			c, err := t.loadClusterFile(file, imported)
			if err != nil {
				return err
			}
			state := topology.Configuring
			if activated {
				state = topology.Activated
			}
			v := validator.New(c, validator.WithLogger(t.log))
			if err := v.Validate(state); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, warn := range v.Warnings() {
				fmt.Fprintf(w, "Warning: %s\n", warn)
			}
			fmt.Fprintf(w, "Configuration is valid: %d stripe(s), %d node(s)\n", c.StripeCount(), c.NodeCount())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "config-file", "f", "", "Archivo de propiedades")
	cmd.Flags().BoolVar(&imported, "import", false, "El archivo viene de export (acepta UIDs)")
	cmd.Flags().BoolVar(&activated, "activated", false, "Validar con las reglas de un cluster activado")
	return cmd
}
