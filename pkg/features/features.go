package features

import (
	"fmt"
	"sort"

	"go.firedancer.io/singlepool/pkg/base58"
)

type Features struct {
	enabled map[[32]byte]uint64
}

func NewFeaturesDefault() *Features {
	return &Features{enabled: make(map[[32]byte]uint64)}
}

func (f *Features) EnableFeature(gate FeatureGate, slot uint64) {
	if f.enabled == nil {
		f.enabled = make(map[[32]byte]uint64)
	}
	f.enabled[gate.Address] = slot
}

func (f *Features) DisableFeature(gate FeatureGate) {
	delete(f.enabled, gate.Address)
}

func (f *Features) IsActive(gate FeatureGate) bool {
	_, ok := f.enabled[gate.Address]
	return ok
}

// AllEnabled lists enabled features in gate-name order.
func (f *Features) AllEnabled() []string {
	var enabled []string
	for _, gate := range AllFeatureGates {
		if f.IsActive(gate) {
			enabled = append(enabled, fmt.Sprintf("feature %s (%s) enabled", gate.Name, base58.Encode(gate.Address[:])))
		}
	}
	sort.Strings(enabled)
	return enabled
}

// GateByName resolves a feature gate from its name, as used in config files.
func GateByName(name string) (FeatureGate, bool) {
	for _, gate := range AllFeatureGates {
		if gate.Name == name {
			return gate, true
		}
	}
	return FeatureGate{}, false
}
