// Package pins loads schema-validated pin table definitions and builds
// the pin container for a remote component.
package pins

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kay54068/halremote/internal/hal"
)

type PinTableDefinition struct {
	PinTable PinTableInfo      `json:"pin_table"`
	Pins     []PinDefinition   `json:"pins"`
	Groups   []GroupDefinition `json:"groups,omitempty"`
}

type PinTableInfo struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

type PinDefinition struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Direction   string      `json:"direction"`
	Enabled     *bool       `json:"enabled,omitempty"`
	Initial     interface{} `json:"initial,omitempty"`
	Description string      `json:"description,omitempty"`
}

type GroupDefinition struct {
	Name   string            `json:"name"`
	Pins   []PinDefinition   `json:"pins,omitempty"`
	Groups []GroupDefinition `json:"groups,omitempty"`
}

type TableLoader struct {
	cache       sync.Map
	validator   *Validator
	searchPaths []string
}

func NewTableLoader(searchPaths []string) (*TableLoader, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &TableLoader{
		validator:   validator,
		searchPaths: searchPaths,
	}, nil
}

// Load reads, validates, and parses a pin table. The name is looked up
// as <name>.json in each search path; absolute paths are used as-is.
func (l *TableLoader) Load(name string) (*PinTableDefinition, error) {
	if cached, ok := l.cache.Load(name); ok {
		return cached.(*PinTableDefinition), nil
	}

	var data []byte
	var err error
	var foundPath string

	if filepath.IsAbs(name) {
		data, err = os.ReadFile(name)
		foundPath = name
	} else {
		for _, searchPath := range l.searchPaths {
			fullPath := filepath.Join(searchPath, name+".json")
			data, err = os.ReadFile(fullPath)
			if err == nil {
				foundPath = fullPath
				break
			}
		}
	}

	if data == nil {
		return nil, fmt.Errorf("pin table not found: %s (searched in: %v)", name, l.searchPaths)
	}

	if err := l.validator.ValidateTable(data); err != nil {
		return nil, fmt.Errorf("validation failed for %s: %w", foundPath, err)
	}

	var table PinTableDefinition
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pin table: %w", err)
	}

	l.cache.Store(name, &table)

	return &table, nil
}

func (l *TableLoader) ClearCache() {
	l.cache.Range(func(key, value interface{}) bool {
		l.cache.Delete(key)
		return true
	})
}

// Build turns a pin table definition into a pin container tree.
func Build(table *PinTableDefinition) (*hal.Group, error) {
	root := hal.NewGroup(table.PinTable.ID)

	if err := buildInto(root, table.Pins, table.Groups); err != nil {
		return nil, err
	}
	return root, nil
}

func buildInto(group *hal.Group, pinDefs []PinDefinition, groupDefs []GroupDefinition) error {
	for _, def := range pinDefs {
		pin, err := buildPin(def)
		if err != nil {
			return err
		}
		group.AddPin(pin)
	}
	for _, def := range groupDefs {
		child := hal.NewGroup(def.Name)
		if err := buildInto(child, def.Pins, def.Groups); err != nil {
			return err
		}
		group.AddGroup(child)
	}
	return nil
}

func buildPin(def PinDefinition) (*hal.Pin, error) {
	pin := hal.NewPin(def.Name, hal.PinType(def.Type), hal.PinDirection(def.Direction))
	if def.Enabled != nil {
		pin.SetEnabled(*def.Enabled)
	}
	if def.Initial != nil {
		if err := pin.SetValue(def.Initial); err != nil {
			return nil, fmt.Errorf("pin %s: bad initial value: %w", def.Name, err)
		}
	}
	return pin, nil
}
