package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/proposal-cli/internal/model"
)

// loadRFQFile reads an RFQ record from a JSON or YAML file.
func loadRFQFile(path string) (model.RFQ, error) {
	var rfq model.RFQ
	if err := loadRecord(path, &rfq); err != nil {
		return rfq, err
	}
	if rfq.ID == "" || rfq.Title == "" {
		return rfq, eris.Errorf("rfq file %s: id and title are required", path)
	}
	return rfq, nil
}

// loadEntityFile reads a company record from a JSON or YAML file.
func loadEntityFile(path string) (model.Entity, error) {
	var entity model.Entity
	if err := loadRecord(path, &entity); err != nil {
		return entity, err
	}
	if entity.Name == "" {
		return entity, eris.Errorf("entity file %s: name is required", path)
	}
	return entity, nil
}

func loadRecord(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "read %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return eris.Wrapf(err, "parse yaml %s", path)
		}
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return eris.Wrapf(err, "parse json %s", path)
		}
	}
	return nil
}
