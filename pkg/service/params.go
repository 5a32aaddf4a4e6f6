package service

import "github.com/fgp-dev/fgp-neon/pkg/apperrors"

// Parameter readers over decoded JSON params. A value of the wrong
// JSON kind reads the same as an absent one: required parameters fail,
// optional parameters fall back to their default.

func reqString(p map[string]any, name string) (string, error) {
	if v, ok := p[name].(string); ok {
		return v, nil
	}
	return "", apperrors.MissingParam(name)
}

func optString(p map[string]any, name, def string) string {
	if v, ok := p[name].(string); ok {
		return v
	}
	return def
}

// optInt narrows JSON numbers to int32, truncating toward zero.
func optInt(p map[string]any, name string, def int32) int32 {
	switch v := p[name].(type) {
	case float64:
		return int32(v)
	case int:
		return int32(v)
	case int64:
		return int32(v)
	case int32:
		return v
	default:
		return def
	}
}

func optBool(p map[string]any, name string, def bool) bool {
	if v, ok := p[name].(bool); ok {
		return v
	}
	return def
}
