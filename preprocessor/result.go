package preprocessor

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/mkadit/isoperf/iso8583"
)

type Stage string

const (
	StagePIN  Stage = "pin"
	StageARQC Stage = "arqc"
	StageMAC  Stage = "mac"
)

type Status int

const (
	StatusSkipped Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	}
	return "skipped"
}

// StageResult is the outcome of one stage. Field is the path written on
// success.
type StageResult struct {
	Stage  Stage
	Status Status
	Field  string
	Err    error
}

func (r StageResult) MarshalZerologObject(e *zerolog.Event) {
	e.Str("stage", string(r.Stage)).Str("status", r.Status.String())
	if r.Field != "" {
		e.Str("field", r.Field)
	}
	if r.Err != nil {
		e.AnErr("error", r.Err)
	}
}

// Result collects the outcome of every stage of one Apply call.
type Result struct {
	PIN  StageResult
	ARQC StageResult
	MAC  StageResult
}

// Stages returns the stage results in execution order.
func (r Result) Stages() []StageResult {
	return []StageResult{r.PIN, r.ARQC, r.MAC}
}

// Err joins the provider failures of all stages. Configuration and parse
// problems only skip their stage and are not reported here.
func (r Result) Err() error {
	var errs []error
	for _, s := range r.Stages() {
		var pe *iso8583.ProviderError
		if s.Err != nil && errors.As(s.Err, &pe) {
			errs = append(errs, s.Err)
		}
	}
	return errors.Join(errs...)
}
