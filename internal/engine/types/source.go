package types

// Source partitions sensors by the subsystem that produces their data.
// The orchestrator visits all sources round-robin; each source owns its
// own set of sensor control blocks in the registry.
type Source int

const (
	// SourceGateway covers sensors local to the gateway itself.
	SourceGateway Source = iota
	// SourceHosted covers sensors on devices hosted behind the gateway.
	SourceHosted
	// SourceCAN covers sensors decoded from the CAN bus.
	SourceCAN

	// NumSources is the number of upload sources.
	NumSources = int(SourceCAN) + 1
)

// String returns the source name as used in config files and logs.
func (s Source) String() string {
	switch s {
	case SourceGateway:
		return "gateway"
	case SourceHosted:
		return "hosted"
	case SourceCAN:
		return "can"
	default:
		return "unknown"
	}
}

// ParseSource parses a source name as used in config files.
func ParseSource(s string) (Source, bool) {
	switch s {
	case "gateway":
		return SourceGateway, true
	case "hosted":
		return SourceHosted, true
	case "can":
		return SourceCAN, true
	default:
		return SourceGateway, false
	}
}

// Valid reports whether the source is one of the defined partitions.
func (s Source) Valid() bool {
	return s >= SourceGateway && int(s) < NumSources
}

// Next returns the source after s in orchestrator visiting order,
// wrapping back to the first source.
func (s Source) Next() Source {
	return Source((int(s) + 1) % NumSources)
}
