package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONB stores arbitrary structured data in a jsonb column.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("models: JSONB.Scan: type assertion to []byte failed")
	}

	return json.Unmarshal(b, j)
}
