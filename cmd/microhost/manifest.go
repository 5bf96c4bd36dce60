package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/GriffinCanCode/microhost/internal/app"
)

// Manifest lists the apps to mount at startup
type Manifest struct {
	Apps []app.MountRequest `yaml:"apps"`
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return parseManifest(data)
}

func parseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.UnmarshalWithOptions(data, &m, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Apps) == 0 {
		return nil, errors.New("manifest lists no apps")
	}

	seen := make(map[string]bool, len(m.Apps))
	for i, a := range m.Apps {
		if a.Name == "" || a.URL == "" {
			return nil, fmt.Errorf("app #%d: name and url are required", i+1)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("app %q listed twice", a.Name)
		}
		seen[a.Name] = true
	}
	return &m, nil
}
