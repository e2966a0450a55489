package devices

import (
	"fmt"

	"github.com/fgpanels/switchpanel/internal/types"
)

// Resolver binds device-side switch names to bit masks.
type Resolver struct {
	names *types.NameTable
}

func NewResolver(names *types.NameTable) *Resolver {
	return &Resolver{names: names}
}

// Resolve turns a mapping definition into a bit-mask keyed Mapping. A later
// binding for the same switch replaces an earlier one.
func (r *Resolver) Resolve(def *types.MappingDefinition) (*types.Mapping, error) {
	mapping := &types.Mapping{
		Plane:        def.Plane,
		Switches:     make(map[types.Snapshot]string, len(def.Switches)),
		Magnetos:     def.Magnetos,
		Starter:      def.Starter,
		GearRetarget: def.GearRetarget,
		GearPrimer:   def.GearPrimer,
	}

	for _, binding := range def.Switches {
		mask, ok := r.names.Lookup(binding.Name)
		if !ok {
			return nil, fmt.Errorf("%w %q", types.ErrUnknownControl, binding.Name)
		}
		mapping.Switches[mask] = binding.Command
	}

	if len(mapping.Switches) < types.MinSwitchBindings {
		return nil, fmt.Errorf("%w: you need %d switch elements, only %d unique ones provided",
			types.ErrTooFewSwitches, types.MinSwitchBindings, len(mapping.Switches))
	}

	return mapping, nil
}
