package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	registry   = make(map[Kind]EntityDefinition)
	registryMu sync.RWMutex
)

// Register adds an entity definition to the registry.
// Panics if the kind is already registered or the definition is incomplete.
func Register(def EntityDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Kind]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Kind))
	}
	if def.IDColumn == "" || def.File == "" || def.Collection == "" {
		panic(fmt.Sprintf("entity %s: id column, file and collection are required", def.Kind))
	}
	for _, f := range def.Fields {
		if f.Type == FieldRef && f.Ref == nil {
			panic(fmt.Sprintf("entity %s: reference column %s has no Ref", def.Kind, f.Column))
		}
	}

	registry[def.Kind] = def
}

// Get returns an entity definition by kind.
func Get(kind Kind) (EntityDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[kind]
	return def, ok
}

// All returns every registered definition in stage order.
func All() []EntityDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Kind < result[j].Kind
	})

	return result
}

// Clear removes all registered entities.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[Kind]EntityDefinition)
}

// Source overrides the file and collection of one kind. Empty values keep the
// registered defaults.
type Source struct {
	File       string
	Collection string
}

// Plan returns the registered definitions in stage order with overrides
// applied, after checking the order satisfies every reference.
func Plan(overrides map[Kind]Source) ([]EntityDefinition, error) {
	defs := All()
	if len(defs) == 0 {
		return nil, errors.New("no entities registered")
	}

	for kind := range overrides {
		if _, ok := Get(kind); !ok {
			return nil, errors.Errorf("override for unknown entity %q", kind)
		}
	}

	for i := range defs {
		if o, ok := overrides[defs[i].Kind]; ok {
			if o.File != "" {
				defs[i].File = o.File
			}
			if o.Collection != "" {
				defs[i].Collection = o.Collection
			}
		}
	}

	if err := ValidatePlan(defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// ValidatePlan checks that collections are distinct and that every kind is
// loaded after the kinds it references.
func ValidatePlan(defs []EntityDefinition) error {
	loaded := make(map[Kind]bool, len(defs))
	collections := make(map[string]Kind, len(defs))

	for _, def := range defs {
		if other, dup := collections[def.Collection]; dup {
			return errors.Errorf("collection %q is used by both %s and %s", def.Collection, other, def.Kind)
		}
		collections[def.Collection] = def.Kind

		for _, dep := range def.DependsOn() {
			if dep == def.Kind {
				return errors.Errorf("%s references itself", def.Kind)
			}
			if !loaded[dep] {
				return errors.Errorf("%s references %s, which is not loaded before it", def.Kind, dep)
			}
		}
		loaded[def.Kind] = true
	}
	return nil
}
