package change

import (
	"fmt"

	"github.com/dropDatabas3/clusterconf/internal/configuration"
	"github.com/dropDatabas3/clusterconf/internal/setting"
	"github.com/dropDatabas3/clusterconf/internal/topology"
)

// SettingChange es un SET o UNSET sobre una dirección de configuración.
type SettingChange struct {
	Operation setting.Operation `json:"operation"`
	Address   string            `json:"address"`
}

// Set arma un SET validado.
func Set(address string) (*SettingChange, error) {
	return newSettingChange(setting.OpSet, address)
}

// Unset arma un UNSET validado.
func Unset(address string) (*SettingChange, error) {
	return newSettingChange(setting.OpUnset, address)
}

func newSettingChange(op setting.Operation, address string) (*SettingChange, error) {
	sc := &SettingChange{Operation: op, Address: address}
	if _, err := sc.configuration(); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *SettingChange) configuration() (configuration.Configuration, error) {
	if sc.Operation != setting.OpSet && sc.Operation != setting.OpUnset {
		return configuration.Configuration{}, fmt.Errorf("operation %s is not a live change", sc.Operation)
	}
	c, err := configuration.ValueOf(sc.Address)
	if err != nil {
		return c, err
	}
	return c, c.Validate(sc.Operation)
}

func (sc *SettingChange) Type() Type { return TypeSetting }

func (sc *SettingChange) Summary() string {
	return sc.Operation.String() + " " + sc.Address
}

func (sc *SettingChange) Apply(c *topology.Cluster) (*topology.Cluster, error) {
	cfg, err := sc.configuration()
	if err != nil {
		return nil, err
	}
	out := c.Clone()
	if err := cfg.Apply(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (sc *SettingChange) CanUpdateRuntimeTopology(topology.NodeContext) bool {
	cfg, err := sc.configuration()
	return err == nil && cfg.Setting().HotApplicable()
}
