package fx

import (
	"errors"
	"fmt"
	"strings"
)

// Factory builds one fresh Unit instance.
type Factory func() Unit

// Registry maps effect type names to their factories. Lookups are
// case-insensitive.
type Registry struct {
	factories map[string]Factory
}

var errDuplicateEffect = errors.New("duplicate effect type")

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for the given effect type.
func (r *Registry) Register(effectType string, factory Factory) error {
	if effectType == "" {
		return errors.New("empty effect type")
	}

	if factory == nil {
		return errors.New("nil factory")
	}

	key := strings.ToLower(effectType)
	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("%w: %s", errDuplicateEffect, effectType)
	}

	r.factories[key] = factory

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(effectType string, factory Factory) {
	err := r.Register(effectType, factory)
	if err != nil {
		panic("fx registry: " + err.Error())
	}
}

// Lookup returns the factory for the given effect type, or nil.
func (r *Registry) Lookup(effectType string) Factory {
	return r.factories[strings.ToLower(effectType)]
}

// Types returns the registered type names, including synonyms.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for key := range r.factories {
		types = append(types, key)
	}

	return types
}

// DefaultRegistry returns a registry with every built-in effect plus the
// common synonyms.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	register := func(factory Factory, names ...string) {
		for _, name := range names {
			r.MustRegister(name, factory)
		}
	}

	register(func() Unit { return NewGain() }, "gain")
	register(func() Unit { return NewPan() }, "pan")
	register(func() Unit { return NewEQ3() }, "eq", "eq3", "equalizer")
	register(func() Unit { return NewCompressor() }, "compressor", "comp")
	register(func() Unit { return NewLimiter() }, "limiter", "limit")
	register(func() Unit { return NewDelay() }, "delay", "echo")
	register(func() Unit { return NewReverb() }, "reverb", "verb")
	register(func() Unit { return NewSaturator() }, "saturator", "sat", "saturation", "drive", "distortion")
	register(func() Unit { return NewMidSide() }, "midside", "ms", "stereo")

	return r
}
