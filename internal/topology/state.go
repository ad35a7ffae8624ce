package topology

// ClusterState es el estado de una topología respecto de su activación.
type ClusterState int

const (
	Unconfigured ClusterState = iota
	Configuring
	Activated
)

func (s ClusterState) String() string {
	switch s {
	case Unconfigured:
		return "UNCONFIGURED"
	case Configuring:
		return "CONFIGURING"
	case Activated:
		return "ACTIVATED"
	default:
		return "UNKNOWN"
	}
}

// Version es la generación del esquema de configuración.
// Un cluster creado con una versión vieja no valida los invariantes nuevos.
type Version int

const (
	// V1: sin stripe names obligatorios ni UIDs.
	V1 Version = 1
	// V2: stripe names obligatorios y UIDs únicos en todo el cluster.
	V2 Version = 2

	CurrentVersion = V2
)

func (v Version) AtLeast(o Version) bool { return v >= o }
