package importer

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_mapping.yaml
var defaultMappingYAML []byte

// Mapping tells the importer which spreadsheet columns hold which fields.
type Mapping struct {
	Sheet     string  `yaml:"sheet"`
	HeaderRow int     `yaml:"headerRow"`
	Columns   Columns `yaml:"columns"`
}

// Columns holds header names; matching is case-insensitive.
type Columns struct {
	CustomerID string `yaml:"customerId"`
	Name       string `yaml:"name"`
	Phone      string `yaml:"phone"`
	Email      string `yaml:"email"`
	Street     string `yaml:"street"`
	City       string `yaml:"city"`
	State      string `yaml:"state"`
	Zip        string `yaml:"zip"`
	Active     string `yaml:"active"`
}

// DefaultMapping returns the mapping for the standard CRM export.
func DefaultMapping() Mapping {
	m, err := parseMapping(defaultMappingYAML)
	if err != nil {
		panic("invalid embedded mapping: " + err.Error())
	}
	return m
}

// LoadMapping reads a YAML mapping. Omitted columns keep their defaults.
func LoadMapping(r io.Reader) (Mapping, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Mapping{}, fmt.Errorf("read mapping: %w", err)
	}

	m := DefaultMapping()
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Mapping{}, fmt.Errorf("parse mapping: %w", err)
	}
	return m, m.validate()
}

func parseMapping(data []byte) (Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Mapping{}, err
	}
	return m, m.validate()
}

func (m Mapping) validate() error {
	if strings.TrimSpace(m.Columns.CustomerID) == "" {
		return fmt.Errorf("mapping must name the customer id column")
	}
	if strings.TrimSpace(m.Columns.Phone) == "" && strings.TrimSpace(m.Columns.Email) == "" {
		return fmt.Errorf("mapping must name a phone or email column")
	}
	if m.HeaderRow < 1 {
		return fmt.Errorf("headerRow must be 1 or greater")
	}
	return nil
}
