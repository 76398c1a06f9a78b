package plugin

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrMalformedDescriptor is returned when a descriptor lacks a name or version.
var ErrMalformedDescriptor = errors.New("malformed plugin descriptor")

// Descriptor is the static identity of a plugin.
type Descriptor struct {
	Name        string
	Version     string
	Description string
	Author      string
	// Capabilities are feature tags such as "input" or "export:foundry".
	Capabilities []string
	// Dependencies are names of other descriptors that must complete first.
	Dependencies []string
}

// Validate checks the fields required for a descriptor to be catalogued.
func (d Descriptor) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(d.Version) == "" {
		missing = append(missing, "version")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformedDescriptor, strings.Join(missing, " and "))
	}
	return nil
}

// Clone returns a deep copy with normalised capabilities. Registered
// descriptors are always clones so callers cannot mutate catalogue state.
func (d Descriptor) Clone() Descriptor {
	out := d
	out.Capabilities = NormalizeCapabilities(d.Capabilities)
	out.Dependencies = slices.Clone(d.Dependencies)
	return out
}

// Role infers the descriptor's scheduling role from its capabilities.
func (d Descriptor) Role() Role {
	return RoleOf(d.Capabilities)
}

// HasCapability reports whether the descriptor carries the given tag, or any
// tag with the given prefix followed by ':'.
func (d Descriptor) HasCapability(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, c := range d.Capabilities {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == tag || strings.HasPrefix(c, tag+":") {
			return true
		}
	}
	return false
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s@%s", d.Name, d.Version)
}

// NormalizeCapabilities lower-cases, trims, de-duplicates and sorts tags.
func NormalizeCapabilities(caps []string) []string {
	if len(caps) == 0 {
		return nil
	}
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
