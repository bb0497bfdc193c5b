package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"inferd/pkg/types"
)

// Catalog builds the /v1/models listing from explicit model ids.
func Catalog(ids []string, ownedBy string) []types.Model {
	if ownedBy == "" {
		ownedBy = "local"
	}
	created := time.Now().Unix()
	models := make([]types.Model, 0, len(ids))
	for _, id := range ids {
		models = append(models, types.Model{
			ID:      id,
			Object:  "model",
			Created: created,
			OwnedBy: ownedBy,
		})
	}
	return models
}

// ScanModels discovers *.gguf files under dir and lists them as servable
// models, using the filename as the id.
func ScanModels(dir string) ([]types.Model, error) {
	base, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	created := time.Now().Unix()
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		models = append(models, types.Model{
			ID:      name,
			Object:  "model",
			Created: created,
			OwnedBy: "local",
		})
	}
	return models, nil
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
