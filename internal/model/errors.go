package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration  = errors.New("configuration error")
	ErrModel          = errors.New("model error")
	ErrData           = errors.New("data error")
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// ConfigurationError reports an invalid operating point or reference parameter.
type ConfigurationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s=%g: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// ModelError reports that the solver cannot produce a physically valid curve.
type ModelError struct {
	Reason string
}

func (e *ModelError) Error() string {
	return "model error: " + e.Reason
}

func (e *ModelError) Unwrap() error { return ErrModel }

// CatalogKey identifies one catalog row.
type CatalogKey struct {
	Manufacturer string `json:"Manufacturer"`
	Model        string `json:"Model"`
}

// DataError reports missing or malformed input data. For catalog misses,
// Suggestions holds the closest matches.
type DataError struct {
	Reason      string
	Query       CatalogKey
	Suggestions []CatalogKey
}

func (e *DataError) Error() string {
	if e.Query != (CatalogKey{}) {
		return fmt.Sprintf("data error: %s (manufacturer=%q model=%q, %d suggestions)",
			e.Reason, e.Query.Manufacturer, e.Query.Model, len(e.Suggestions))
	}
	return "data error: " + e.Reason
}

func (e *DataError) Unwrap() error { return ErrData }

// SchemaMismatchError lists features a trained model expects but an input
// vector lacks. Callers substitute 0 for each and keep going.
type SchemaMismatchError struct {
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return "schema mismatch: missing features " + strings.Join(e.Missing, ", ")
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }
