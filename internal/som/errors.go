package som

import "fmt"

// ShapeError reports a dimensionality mismatch between samples, prototypes,
// or the configured grid. Training and scoring never proceed past one.
type ShapeError struct {
	Op   string // operation that detected the mismatch, e.g. "train", "winner"
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: dimension mismatch: want %d, got %d", e.Op, e.Want, e.Got)
}

// ConfigError reports an invalid training configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// InputError reports malformed input data: an empty sample set or a
// non-finite value. Detection happens before any prototype update so a
// failed call never leaves a partially trained map behind.
type InputError struct {
	Index  int // sample index, or -1 when not attributable to one sample
	Reason string
}

func (e *InputError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input: sample %d: %s", e.Index, e.Reason)
}
