package models

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Saves stores finished lives as YAML under Dir, one directory per life.
type Saves struct {
	Dir string
}

// Save writes l under Dir/name as life.yaml and records.yaml.
func (s Saves) Save(name string, l *Life) error {
	dir := filepath.Join(s.Dir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	head := *l
	head.Records = nil
	lifeData, err := yaml.Marshal(head)
	if err != nil {
		return fmt.Errorf("marshal life: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "life.yaml"), lifeData, 0644); err != nil {
		return err
	}

	recordData, err := yaml.Marshal(l.Records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "records.yaml"), recordData, 0644); err != nil {
		return err
	}

	return nil
}

// Load reads a life previously written by Save.
func (s Saves) Load(name string) (*Life, error) {
	dir := filepath.Join(s.Dir, name)

	lifeData, err := os.ReadFile(filepath.Join(dir, "life.yaml"))
	if err != nil {
		return nil, err
	}
	var life Life
	if err := yaml.Unmarshal(lifeData, &life); err != nil {
		return nil, fmt.Errorf("parse life: %w", err)
	}

	recordData, err := os.ReadFile(filepath.Join(dir, "records.yaml"))
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(recordData, &life.Records); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}

	return &life, nil
}

// List returns the names of saved lives.
func (s Saves) List() ([]string, error) {
	if _, err := os.Stat(s.Dir); os.IsNotExist(err) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}

	var lives []string
	for _, entry := range entries {
		if entry.IsDir() {
			// life.yaml marks a complete save
			lifePath := filepath.Join(s.Dir, entry.Name(), "life.yaml")
			if _, err := os.Stat(lifePath); err == nil {
				lives = append(lives, entry.Name())
			}
		}
	}
	return lives, nil
}
