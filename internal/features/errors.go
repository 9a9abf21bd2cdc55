package features

import (
	"errors"
	"fmt"

	"github.com/banshee-data/motion.report/internal/table"
)

var (
	// ErrConfiguration marks an invalid stage parameter. Fatal.
	ErrConfiguration = errors.New("configuration error")
	// ErrSchema marks a missing or mistyped input column. Fatal.
	ErrSchema = errors.New("schema error")
)

// ConfigurationError reports a parameter outside its valid range.
type ConfigurationError struct {
	Param  string
	Value  interface{}
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s=%v: %s", e.Param, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

func configErr(param string, value interface{}, format string, args ...interface{}) error {
	return &ConfigurationError{Param: param, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// SchemaError reports an input column that is missing, of the wrong kind, or
// holds values a numeric stage cannot consume.
type SchemaError struct {
	Column string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema error: column %q: %s: %v", e.Column, e.Reason, e.Err)
	}
	return fmt.Sprintf("schema error: column %q: %s", e.Column, e.Reason)
}

func (e *SchemaError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSchema, e.Err}
	}
	return []error{ErrSchema}
}

// DataSufficiencyError reports a segment shorter than a stage's window. It is
// recoverable: the stage emits it and fills that segment's derived columns
// with NaN instead of failing.
type DataSufficiencyError struct {
	Stage  string
	Set    int64
	Rows   int
	Window int
}

func (e *DataSufficiencyError) Error() string {
	return fmt.Sprintf("%s: set %d has %d rows, fewer than window %d; derived values left undefined",
		e.Stage, e.Set, e.Rows, e.Window)
}

// NoticeSink receives recoverable DataSufficiencyErrors. A nil sink logs
// through monitoring.Logf.
type NoticeSink func(*DataSufficiencyError)

// floatColumns fetches Float columns, mapping lookup failures to SchemaError.
func floatColumns(t *table.Table, names []string) ([][]float64, error) {
	out := make([][]float64, len(names))
	for i, name := range names {
		vals, err := t.Float(name)
		if err != nil {
			return nil, &SchemaError{Column: name, Reason: "numeric channel required", Err: err}
		}
		out[i] = vals
	}
	return out, nil
}

func requireColumn(t *table.Table, name string, kind table.Kind) error {
	k, err := t.Kind(name)
	if err != nil {
		return &SchemaError{Column: name, Reason: "required column", Err: err}
	}
	if k != kind {
		return &SchemaError{Column: name, Reason: fmt.Sprintf("expected %s column, got %s", kind, k)}
	}
	return nil
}
