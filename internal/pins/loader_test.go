package pins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/kay54068/halremote/internal/hal"
)

const validTable = `{
  "pin_table": {"id": "panel", "version": "1"},
  "pins": [
    {"name": "enable", "type": "bit", "direction": "out", "initial": true},
    {"name": "speed", "type": "float", "direction": "io", "initial": 12.5},
    {"name": "spare", "type": "bit", "direction": "in", "enabled": false}
  ],
  "groups": [
    {
      "name": "axis",
      "pins": [{"name": "jog", "type": "s32", "direction": "out", "initial": -3}]
    }
  ]
}`

func writeTable(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
}

func TestLoadAndBuild(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "panel", validTable)

	loader, err := NewTableLoader([]string{dir})
	if err != nil {
		t.Fatalf("NewTableLoader: %v", err)
	}

	table, err := loader.Load("panel")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assert.Equal(t, table.PinTable.ID, "panel")

	root, err := Build(table)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	pins := root.Pins()
	if len(pins) != 4 {
		t.Fatalf("expected 4 pins, got %d", len(pins))
	}

	byName := map[string]*hal.Pin{}
	for _, p := range pins {
		byName[p.Name()] = p
	}

	enable := byName["enable"]
	assert.Equal(t, enable.Type(), hal.PinTypeBit)
	assert.Equal(t, enable.Direction(), hal.DirectionOut)
	assert.Equal(t, enable.Bit(), true)

	speed := byName["speed"]
	assert.Equal(t, speed.Float(), 12.5)

	spare := byName["spare"]
	assert.Equal(t, spare.Enabled(), false)

	jog := byName["jog"]
	assert.Equal(t, jog.S32(), int32(-3))
}

func TestLoadCaches(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, "panel", validTable)

	loader, err := NewTableLoader([]string{dir})
	if err != nil {
		t.Fatalf("NewTableLoader: %v", err)
	}

	first, err := loader.Load("panel")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// delete the file: the cached definition keeps working
	os.Remove(filepath.Join(dir, "panel.json"))
	second, err := loader.Load("panel")
	if err != nil {
		t.Fatalf("cached Load: %v", err)
	}
	if first != second {
		t.Fatalf("expected the cached definition")
	}

	loader.ClearCache()
	if _, err := loader.Load("panel"); err == nil {
		t.Fatalf("expected miss after ClearCache with deleted file")
	}
}

func TestLoadRejectsInvalidTable(t *testing.T) {
	dir := t.TempDir()

	// type must be one of the pin type enum values
	writeTable(t, dir, "broken", `{
	  "pins": [{"name": "x", "type": "string", "direction": "out"}]
	}`)

	loader, err := NewTableLoader([]string{dir})
	if err != nil {
		t.Fatalf("NewTableLoader: %v", err)
	}

	if _, err := loader.Load("broken"); err == nil {
		t.Fatalf("expected schema validation error")
	}
}

func TestLoadMissingTable(t *testing.T) {
	loader, err := NewTableLoader([]string{t.TempDir()})
	if err != nil {
		t.Fatalf("NewTableLoader: %v", err)
	}

	if _, err := loader.Load("nope"); err == nil {
		t.Fatalf("expected error for missing table")
	}
}
