package configtool

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/clusterconf/internal/change"
	"github.com/dropDatabas3/clusterconf/internal/configuration"
	"github.com/dropDatabas3/clusterconf/internal/setting"
)

func (t *tool) getCommand() *cobra.Command {
	var (
		node    string
		configs []string
		runtime bool
	)
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Lee settings de la topología de un nodo",
		RunE: func(cmd *cobra.Command, args []string) error {
			if node == "" || len(configs) == 0 {
				return fmt.Errorf("-s y al menos un -c son requeridos")
			}
			ep, err := parseEndpoint(node)
			if err != nil {
				return err
			}
			// validar antes de ir a la red
			wanted := make([]configuration.Configuration, 0, len(configs))
			for _, in := range configs {
				c, err := configuration.ValueOf(in)
				if err != nil {
					return err
				}
				if err := c.Validate(setting.OpGet); err != nil {
					return err
				}
				wanted = append(wanted, c)
			}
			ctx, cancel := t.context(cmd)
			defer cancel()
			nc, err := t.transport.Topology(ctx, ep, !runtime)
			if err != nil {
				return fmt.Errorf("read topology of %s: %w", ep, err)
			}
			w := cmd.OutOrStdout()
			for _, c := range wanted {
				found, err := c.Get(nc.Cluster())
				if err != nil {
					return err
				}
				if err := configuration.WriteProperties(w, found); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&node, "node", "s", "", "Nodo a consultar (host[:port])")
	cmd.Flags().StringArrayVarP(&configs, "config", "c", nil, "Dirección a leer (repetible)")
	cmd.Flags().BoolVar(&runtime, "runtime", false, "Leer la topología runtime en vez de la upcoming")
	return cmd
}

func (t *tool) setCommand() *cobra.Command {
	return t.settingCommand("set", "Cambia settings en todo el cluster", change.Set)
}

func (t *tool) unsetCommand() *cobra.Command {
	return t.settingCommand("unset", "Vuelve settings a su valor por defecto en todo el cluster", change.Unset)
}

// settingCommand corre un cambio por cada -c, en orden. Corta en el primer
// rechazo.
func (t *tool) settingCommand(use, short string, build func(string) (*change.SettingChange, error)) *cobra.Command {
	var (
		node    string
		configs []string
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if node == "" || len(configs) == 0 {
				return fmt.Errorf("-s y al menos un -c son requeridos")
			}
			ep, err := parseEndpoint(node)
			if err != nil {
				return err
			}
			changes := make([]*change.SettingChange, 0, len(configs))
			for _, in := range configs {
				ch, err := build(in)
				if err != nil {
					return err
				}
				changes = append(changes, ch)
			}

			ctx, cancel := t.context(cmd)
			defer cancel()
			nc, eps, err := t.runtimeCluster(ctx, ep)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			restart := false
			for _, ch := range changes {
				fmt.Fprintf(w, "%s\n", ch.Summary())
				out, err := t.coord.Run(ctx, eps, ch)
				if err := report(w, out, err); err != nil {
					return err
				}
				if !ch.CanUpdateRuntimeTopology(nc) {
					restart = true
				}
			}
			if restart {
				fmt.Fprintln(w, "A restart of the cluster is required to apply the changes")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&node, "node", "s", "", "Cualquier nodo del cluster (host[:port])")
	cmd.Flags().StringArrayVarP(&configs, "config", "c", nil, "Dirección a cambiar (repetible)")
	return cmd
}
