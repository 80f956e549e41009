package svg

import (
	"fmt"

	"go.uber.org/zap"

	"imgpub/internal/metrics"
)

// Stage is one step of the sanitizer. An optional stage that returns an
// error is skipped and its input is handed to the next stage unchanged.
type Stage interface {
	Name() string
	Apply(markup []byte) ([]byte, error)
}

// Sanitizer runs optional stages in order, then the final stage, which is
// never skipped.
type Sanitizer struct {
	stages []Stage
	final  Stage
	log    *zap.SugaredLogger
}

// NewSanitizer returns the default pipeline.
func NewSanitizer(log *zap.SugaredLogger) *Sanitizer {
	return NewSanitizerWithStages(log, DefaultStages(), NewPolicyStage())
}

// NewSanitizerWithStages builds a pipeline from explicit stages.
func NewSanitizerWithStages(log *zap.SugaredLogger, stages []Stage, final Stage) *Sanitizer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Sanitizer{stages: stages, final: final, log: log}
}

// DefaultStages returns the optional stages in the order they run.
func DefaultStages() []Stage {
	return []Stage{
		escapeStage{},
		&domStage{name: "comments", transform: dropComments},
		&domStage{name: "event-handlers", transform: dropEventHandlers},
		&domStage{name: "uri-schemes", transform: dropSchemeValues},
		&domStage{name: "denied-elements", transform: dropDeniedElements},
		&domStage{name: "references", transform: dropExternalReferences},
		textStage{},
	}
}

// Sanitize returns a cleaned copy of markup. It never panics. If the final
// stage fails the result is empty.
func (s *Sanitizer) Sanitize(markup []byte) []byte {
	out := markup
	for _, stage := range s.stages {
		next, err := s.apply(stage, out)
		if err != nil {
			s.log.Warnw("sanitizer stage skipped", "stage", stage.Name(), "error", err)
			metrics.SanitizerStageSkips.WithLabelValues(stage.Name()).Inc()
			continue
		}
		out = next
	}

	clean, err := s.apply(s.final, out)
	if err != nil {
		s.log.Errorw("final sanitizer stage failed, dropping content", "stage", s.final.Name(), "error", err)
		return []byte{}
	}
	return clean
}

func (s *Sanitizer) apply(stage Stage, in []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic in stage %s: %v", stage.Name(), r)
		}
	}()
	return stage.Apply(in)
}
