package services

import (
	"math"
	"strings"

	"finite-life/finitelife/models"

	"github.com/google/uuid"
)

// Request bodies arrive as decoded JSON maps. These helpers read one key each and
// report a ValidationError when the value has the wrong shape. present is false when
// the key is missing; a JSON null is present with a zero value.

func stringInput(data map[string]interface{}, key string) (value string, present bool, err error) {
	raw, ok := data[key]
	if !ok {
		return "", false, nil
	}
	if raw == nil {
		return "", true, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", true, &ValidationError{Field: key, Rule: "string"}
	}
	return s, true, nil
}

func trimmedStringInput(data map[string]interface{}, key string) (string, bool, error) {
	s, present, err := stringInput(data, key)
	return strings.TrimSpace(s), present, err
}

func dateInput(data map[string]interface{}, key string) (value *models.Date, present bool, err error) {
	raw, ok := data[key]
	if !ok {
		return nil, false, nil
	}
	switch v := raw.(type) {
	case nil:
		return nil, true, nil
	case string:
		if v == "" {
			return nil, true, nil
		}
		d, err := models.ParseDate(v)
		if err != nil {
			return nil, true, &ValidationError{Field: key, Rule: "date"}
		}
		return &d, true, nil
	case models.Date:
		return &v, true, nil
	default:
		return nil, true, &ValidationError{Field: key, Rule: "date"}
	}
}

func uuidInput(data map[string]interface{}, key string) (value *uuid.UUID, present bool, err error) {
	raw, ok := data[key]
	if !ok {
		return nil, false, nil
	}
	switch v := raw.(type) {
	case nil:
		return nil, true, nil
	case string:
		if v == "" {
			return nil, true, nil
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, true, &ValidationError{Field: key, Rule: "uuid"}
		}
		return &id, true, nil
	case uuid.UUID:
		return &v, true, nil
	default:
		return nil, true, &ValidationError{Field: key, Rule: "uuid"}
	}
}

func intInput(data map[string]interface{}, key string) (value *int, present bool, err error) {
	raw, ok := data[key]
	if !ok {
		return nil, false, nil
	}
	var n int
	switch v := raw.(type) {
	case nil:
		return nil, true, nil
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt32 || v < math.MinInt32 {
			return nil, true, &ValidationError{Field: key, Rule: "integer"}
		}
		n = int(v)
	default:
		return nil, true, &ValidationError{Field: key, Rule: "integer"}
	}
	return &n, true, nil
}
