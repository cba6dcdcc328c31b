package domain

import (
	"strings"
)

// Material is the closed set of printable materials.
// Adding a material is a compile-visible change: every switch over Material
// in this package must grow a case.
type Material int

// Supported materials. The zero value is not a valid material.
const (
	MaterialUnknown Material = iota
	MaterialPA12Grey
	MaterialPA12Black
	MaterialPA12GB
)

// Materials returns every supported material in display order.
func Materials() []Material {
	return []Material{MaterialPA12Grey, MaterialPA12Black, MaterialPA12GB}
}

// String returns the material code used on the wire and in configuration.
func (m Material) String() string {
	switch m {
	case MaterialPA12Grey:
		return "PA12_GREY"
	case MaterialPA12Black:
		return "PA12_BLACK"
	case MaterialPA12GB:
		return "PA12_GB"
	case MaterialUnknown:
		return "UNKNOWN"
	default:
		return "UNKNOWN"
	}
}

// DisplayName returns the catalogue name of the material.
func (m Material) DisplayName() string {
	switch m {
	case MaterialPA12Grey:
		return "PA12 Grey"
	case MaterialPA12Black:
		return "PA12 Black"
	case MaterialPA12GB:
		return "PA12 Glass Bead"
	case MaterialUnknown:
		return ""
	default:
		return ""
	}
}

// Description returns a human-readable description of the material.
func (m Material) Description() string {
	switch m {
	case MaterialPA12Grey:
		return "Standard PA12 nylon material in grey"
	case MaterialPA12Black:
		return "Standard PA12 nylon material in black"
	case MaterialPA12GB:
		return "PA12 nylon with glass bead reinforcement"
	case MaterialUnknown:
		return ""
	default:
		return ""
	}
}

// Valid reports whether m is one of the supported materials.
func (m Material) Valid() bool {
	return m >= MaterialPA12Grey && m <= MaterialPA12GB
}

// ParseMaterial converts a material code such as "PA12_GREY" into a Material.
// Matching ignores case and surrounding whitespace.
func ParseMaterial(code string) (Material, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	for _, m := range Materials() {
		if m.String() == normalized {
			return m, nil
		}
	}

	return MaterialUnknown, NewValidationErrorWithValue("material", "invalid material: "+code, code)
}

// MarshalText implements encoding.TextMarshaler.
func (m Material) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Material) UnmarshalText(text []byte) error {
	parsed, err := ParseMaterial(string(text))
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}

// MaterialRates holds the USD price per cubic centimetre of each material.
type MaterialRates struct {
	PA12Grey  float64
	PA12Black float64
	PA12GB    float64
}

// Rate returns the per-cm³ rate for m. Unknown materials price at zero.
func (r MaterialRates) Rate(m Material) float64 {
	switch m {
	case MaterialPA12Grey:
		return r.PA12Grey
	case MaterialPA12Black:
		return r.PA12Black
	case MaterialPA12GB:
		return r.PA12GB
	case MaterialUnknown:
		return 0
	default:
		return 0
	}
}

