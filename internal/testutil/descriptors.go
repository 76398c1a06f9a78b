package testutil

import "github.com/specialistvlad/ttrpgconv/internal/plugin"

// LinearPipeline returns the three-stage pipeline input_a -> validate_b -> export_c.
func LinearPipeline() []plugin.Descriptor {
	return []plugin.Descriptor{
		{Name: "input_a", Version: "1.0.0", Capabilities: []string{"input"}},
		{Name: "validate_b", Version: "1.0.0", Capabilities: []string{"validation"}, Dependencies: []string{"input_a"}},
		{Name: "export_c", Version: "1.0.0", Capabilities: []string{"export"}, Dependencies: []string{"validate_b"}},
	}
}

// Descriptor builds a descriptor with version 1.0.0.
func Descriptor(name string, caps []string, deps ...string) plugin.Descriptor {
	return plugin.Descriptor{Name: name, Version: "1.0.0", Capabilities: caps, Dependencies: deps}
}
