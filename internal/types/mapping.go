package types

// MappingDefinition is the decoded mapping document, before device-side
// names are resolved against the NameTable.
type MappingDefinition struct {
	Plane        string          `json:"plane,omitempty" yaml:"plane"`
	Switches     []SwitchBinding `json:"switches" yaml:"switches"`
	Magnetos     string          `json:"magnetos" yaml:"magnetos"`
	Starter      string          `json:"starter" yaml:"starter"`
	GearRetarget string          `json:"gear_retarget,omitempty" yaml:"gear_retarget"`
	GearPrimer   string          `json:"gear_primer,omitempty" yaml:"gear_primer"`
}

// SwitchBinding binds a device-side control name to a simulator command.
type SwitchBinding struct {
	Name    string `json:"name" yaml:"name"`
	Command string `json:"command" yaml:"command"`
}

// Mapping is a resolved MappingDefinition, keyed by bit mask.
type Mapping struct {
	Plane        string
	Switches     map[Snapshot]string
	Magnetos     string
	Starter      string
	GearRetarget string
	GearPrimer   string
}
