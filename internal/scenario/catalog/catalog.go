// Package catalog embeds the built-in scenario definitions.
package catalog

import (
	"embed"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/scenario"
)

//go:embed *.yaml
var files embed.FS

// Load returns the built-in scenarios sorted by name.
func Load() ([]schemas.Scenario, error) {
	return scenario.LoadFS(files, ".")
}
