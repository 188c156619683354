package logparser

import (
	"regexp"
	"strings"

	"github.com/newhook/plclog/internal/model"
)

// CascadeOptions tunes which heuristics may link an error to an earlier one.
type CascadeOptions struct {
	SharedLine bool
	SharedFile bool
	// TokenOverlap is the minimum Jaccard overlap of message tokens. Zero
	// disables the check.
	TokenOverlap float64
	// StageOrdering links any downstream error to an earlier XML validation
	// error.
	StageOrdering bool
	// SummaryAttribution links a summary line to the nearest earlier
	// non-summary error.
	SummaryAttribution bool
}

// DefaultTokenOverlap is the Jaccard threshold used when none is configured.
const DefaultTokenOverlap = 0.5

// DefaultCascadeOptions enables every heuristic.
func DefaultCascadeOptions() CascadeOptions {
	return CascadeOptions{
		SharedLine:         true,
		SharedFile:         true,
		TokenOverlap:       DefaultTokenOverlap,
		StageOrdering:      true,
		SummaryAttribution: true,
	}
}

// DetectCascades returns a copy of errs where each error links to the
// nearest earlier error it plausibly follows from. The input is not
// modified.
func DetectCascades(errs []model.ParsedError, opts CascadeOptions) []model.ParsedError {
	out := make([]model.ParsedError, len(errs))
	copy(out, errs)

	tokens := make([]map[string]struct{}, len(out))
	for i := range out {
		out[i].CausedBy = nil
		tokens[i] = messageTokens(out[i].Message)
	}

	for i := 1; i < len(out); i++ {
		for j := i - 1; j >= 0; j-- {
			if opts.related(&out[j], &out[i], tokens[j], tokens[i]) {
				cause := j
				out[i].CausedBy = &cause
				break
			}
		}
	}
	return out
}

func (o CascadeOptions) related(p, e *model.ParsedError, pTokens, eTokens map[string]struct{}) bool {
	if o.SharedLine && p.LineNumber != nil && e.LineNumber != nil &&
		*p.LineNumber == *e.LineNumber && p.FilePath == e.FilePath {
		return true
	}
	if o.SharedFile && p.FilePath != "" && p.FilePath == e.FilePath {
		return true
	}
	if o.TokenOverlap > 0 && jaccard(pTokens, eTokens) >= o.TokenOverlap {
		return true
	}
	if o.StageOrdering && p.Stage == model.StageXMLValidation && e.Stage.IsDownstreamOf(model.StageXMLValidation) {
		return true
	}
	if o.SummaryAttribution && e.Umbrella && !p.Umbrella {
		return true
	}
	return false
}

var tokenPattern = regexp.MustCompile(`[a-z0-9_]+`)

func messageTokens(msg string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(msg), -1) {
		if len(tok) >= 3 {
			set[tok] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
