package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const modelFormatVersion = 1

type modelFile struct {
	Version    int         `json:"version"`
	Classifier *Classifier `json:"model"`
}

// Save writes the trained model as JSON, creating parent directories as
// needed. The write goes through a temp file so a crash never leaves a
// truncated model on disk.
func Save(c *Classifier, path string) error {
	if len(c.Trees) == 0 {
		return fmt.Errorf("save: model is not trained")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save: create dir: %w", err)
	}

	data, err := json.Marshal(modelFile{Version: modelFormatVersion, Classifier: c})
	if err != nil {
		return fmt.Errorf("save: marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("save: rename: %w", err)
	}
	return nil
}

// Load reads a model saved by Save.
func Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: read: %w", err)
	}

	var file modelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("load: unmarshal: %w", err)
	}
	if file.Version != modelFormatVersion {
		return nil, fmt.Errorf("load: unsupported model version %d", file.Version)
	}
	if file.Classifier == nil || len(file.Classifier.Trees) == 0 {
		return nil, fmt.Errorf("load: model file has no trees")
	}
	return file.Classifier, nil
}
