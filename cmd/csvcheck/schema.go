package main

import (
	"errors"
	"fmt"
	"os"

	"field_inventory_backend/internal/schema/domain"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// schemaFile is a feature type schema kept next to field spreadsheets:
//
//	feature_type: Poste
//	code: POS
//	fields:
//	  - field: material
//	    kind: select
//	    required: true
//	    options: [Concreto, Madera]
//	    order: 1
type schemaFile struct {
	FeatureType string                       `yaml:"feature_type"`
	Code        string                       `yaml:"code"`
	Fields      []domain.AttributeDefinition `yaml:"fields"`

	Schema domain.Schema `yaml:"-"`
}

func (s schemaFile) label() string {
	if s.FeatureType == "" {
		return "schema"
	}
	if s.Code == "" {
		return s.FeatureType
	}
	return s.FeatureType + " (" + s.Code + ")"
}

func loadSchemaFile(path string) (schemaFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schemaFile{}, fmt.Errorf("read schema: %w", err)
	}
	return parseSchema(data)
}

func parseSchema(data []byte) (schemaFile, error) {
	var sf schemaFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return schemaFile{}, fmt.Errorf("parse schema: %w", err)
	}
	if len(sf.Fields) == 0 {
		return schemaFile{}, errors.New("schema defines no fields")
	}
	sf.Schema = domain.NewSchema(uuid.Nil, sf.Fields)
	return sf, nil
}
