// Package modelio reads and writes the YAML files describing the data model
// and the connections to its databases.
package modelio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"dataportal/internal/models"
)

// LoadModel parses a model file and links it. Problems found while linking
// are returned alongside the model, which stays usable.
func LoadModel(path string) (*models.Model, []error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return ParseModel(data)
}

func ParseModel(data []byte) (*models.Model, []error, error) {
	model := &models.Model{}
	if err := yaml.Unmarshal(data, model); err != nil {
		return nil, nil, fmt.Errorf("failed to parse model: %w", err)
	}
	problems := model.Init()
	return model, problems, nil
}

// SaveModel writes the model atomically: a temp file in the same directory
// is renamed over the target.
func SaveModel(model *models.Model, path string) error {
	if path == "" {
		return errors.New("no model file configured")
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(model); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

type connectionsFile struct {
	Connections []models.ConnectionConfig `yaml:"connections"`
}

// LoadConnections parses the connections file. ${VAR} references are
// expanded from the environment before parsing so secrets stay out of it.
func LoadConnections(path string) ([]models.ConnectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read connections file: %w", err)
	}
	return ParseConnections(data)
}

func ParseConnections(data []byte) ([]models.ConnectionConfig, error) {
	var file connectionsFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("failed to parse connections: %w", err)
	}

	seen := make(map[string]bool)
	for i, c := range file.Connections {
		if c.Database == "" {
			return nil, fmt.Errorf("connection %d: database name is required", i)
		}
		if seen[c.Database] {
			return nil, fmt.Errorf("connection %d: duplicate database %q", i, c.Database)
		}
		seen[c.Database] = true
		if c.Driver == "" {
			file.Connections[i].Driver = "pgx"
		}
	}
	return file.Connections, nil
}
