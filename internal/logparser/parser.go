// Package logparser turns raw PLC build logs into structured errors.
//
// Parsing runs in three passes: Segment tags each line with the build stage
// active when it was written, Extract matches recognizer windows against the
// lines, and DetectCascades links each error to the earlier one it follows
// from. Parsing never fails; a log with no recognizable errors yields an
// empty result.
package logparser

import (
	"github.com/newhook/plclog/internal/logging"
	"github.com/newhook/plclog/internal/model"
)

// Parser runs the parse passes with a specific recognizer library and
// cascade tuning. The zero value is not usable; use NewParser.
type Parser struct {
	Library *Library
	Cascade CascadeOptions
}

// NewParser returns a parser using the default library and cascade options.
func NewParser() *Parser {
	return &Parser{
		Library: defaultLibrary,
		Cascade: DefaultCascadeOptions(),
	}
}

// Parse parses raw with the default parser.
func Parse(raw string) *model.ParseResult {
	return NewParser().Parse(raw)
}

// Parse is a pure function of raw and p's configuration and is safe for
// concurrent use.
func (p *Parser) Parse(raw string) *model.ParseResult {
	lib := p.Library
	if lib == nil {
		lib = defaultLibrary
	}

	errs := DetectCascades(lib.Extract(Segment(raw)), p.Cascade)
	result := &model.ParseResult{
		Errors: errs,
		RawLog: raw,
	}
	for i := range errs {
		if errs[i].CausedBy != nil {
			result.HasCascadingErrors = true
			break
		}
	}

	logging.Debug("parsed build log",
		"errors", len(errs),
		"cascading", result.HasCascadingErrors)
	return result
}
