package loader

import (
	"encoding/json"
	"fmt"
)

// dataRecord is one registration of a data script
type dataRecord struct {
	ID      string            `json:"id"`
	Deps    []string          `json:"deps"`
	Exports json.RawMessage   `json:"exports"`
	Main    bool              `json:"main"`
	Entries []string          `json:"entries"`
	Map     map[string]string `json:"map"`
}

// DecodeData decodes a JSON array of data registrations. Each record
// defines a module whose exports are its decoded "exports" value.
func DecodeData(body []byte) (Script, error) {
	var records []dataRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode data script: %w", err)
	}

	values := make([]any, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("data record %d has no id", i)
		}
		if len(rec.Exports) > 0 {
			if err := json.Unmarshal(rec.Exports, &values[i]); err != nil {
				return nil, fmt.Errorf("failed to decode exports of %s: %w", rec.ID, err)
			}
		}
	}

	return func(r *Registry) {
		for i, rec := range records {
			value := values[i]
			r.Define(rec.ID, rec.Deps, func(_ *Require, _ Exports, module *Module, _, _ string) error {
				if value != nil {
					module.Exports = value
				}
				return nil
			}, &Options{Main: rec.Main, Entries: rec.Entries, Map: rec.Map})
		}
	}, nil
}
