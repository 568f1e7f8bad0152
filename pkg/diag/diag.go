// Package diag implements Mercury's diagnostic taxonomy: numeric codes
// for lex/parse/semantic/execution problems, each carrying a source span,
// collected into a Bag and rendered either as LSP-style JSON or
// as a terminal report (§6, §4.8).
//
// This is a distinct error channel from pkg/merr: merr covers Go-level
// sentinel failures (errors.Is/As over store and runtime errors); diag
// covers user-facing problems in a SPARQL query string, addressed by
// byte offset the way a compiler's diagnostic bag would be, following the
// source-span convention visible in the sqlparser/tsqlparser/sqldef
// tokenizers in the pack (every token carries its offset for exactly this
// purpose).
package diag

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// Severity classifies a Diagnostic.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Code ranges per §4.7: 1xxx lex/parse, 2xxx semantic, 3xxx runtime,
// 4xxx storage. Warnings add 10000 within a range, info adds 20000.
const (
	CodeLexUnterminatedString = 1001
	CodeLexInvalidEscape      = 1002
	CodeLexUnexpectedChar     = 1003
	CodeParseUnexpectedToken  = 1004
	CodeParseExpectedToken    = 1005
	CodeParseUnclosedGroup    = 1006

	CodeSemUnboundVariable     = 2001
	CodeSemUnknownPrefix       = 2002
	CodeSemBindDepthViolation  = 2003
	CodeSemAggregateMisuse     = 2004
	CodeSemUngroupedVariable   = 2005
	CodeSemDuplicateBinding    = 2006
	CodeSemCartesianProduct    = 2007

	CodeRuntimeQueryTimeout   = 3001
	CodeRuntimeMemoryExceeded = 3002
	CodeRuntimeInvalidRegex   = 3003
	CodeRuntimeServiceFailure = 3004

	CodeStorageCorruption  = 4001
	CodeStorageIOFailure   = 4002
	CodeStorageLockTimeout = 4003

	warningOffset = 10000
	infoOffset    = 20000
)

// FormatCode renders a stored diagnostic code as Mercury's
// severity-prefixed identifier (§4.7). The warning/info offsets are
// baked into the stored code (see Bag.Warn/Info), so display strips
// back down to the base 4-digit code: FormatCode(SeverityError, 2001)
// == "E2001", FormatCode(SeverityWarning, 11003) == "W1003",
// FormatCode(SeverityInfo, 21001) == "I1001".
func FormatCode(sev Severity, code int) string {
	base := code % warningOffset
	switch sev {
	case SeverityWarning:
		return fmt.Sprintf("W%04d", base)
	case SeverityInfo:
		return fmt.Sprintf("I%04d", base)
	default:
		return fmt.Sprintf("E%04d", base)
	}
}

// Span is a half-open byte range [Start, End) into the original query
// text.
type Span struct {
	Start, End int
	Line, Col  int
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	Code     int
	Severity Severity
	Message  string
	Span     Span
}

// Bag collects diagnostics across a single parse/plan/execute pass.
type Bag struct {
	items []Diagnostic
}

// Add appends a diagnostic at error severity.
func (b *Bag) Add(code int, span Span, format string, args ...any) {
	b.items = append(b.items, Diagnostic{
		Code: code, Severity: SeverityError, Message: fmt.Sprintf(format, args...), Span: span,
	})
}

// Warn appends a diagnostic at warning severity, offsetting code by
// warningOffset so the rendered code stays in the same family.
func (b *Bag) Warn(code int, span Span, format string, args ...any) {
	b.items = append(b.items, Diagnostic{
		Code: code + warningOffset, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), Span: span,
	})
}

// Info appends a diagnostic at info severity.
func (b *Bag) Info(code int, span Span, format string, args ...any) {
	b.items = append(b.items, Diagnostic{
		Code: code + infoOffset, Severity: SeverityInfo, Message: fmt.Sprintf(format, args...), Span: span,
	})
}

// HasErrors reports whether any error-severity diagnostic was added.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Items returns diagnostics sorted by span start, stable within equal
// starts (errors before warnings before info at the same position).
func (b *Bag) Items() []Diagnostic {
	sorted := make([]Diagnostic, len(b.items))
	copy(sorted, b.items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Span.Start != sorted[j].Span.Start {
			return sorted[i].Span.Start < sorted[j].Span.Start
		}
		return sorted[i].Severity < sorted[j].Severity
	})
	return sorted
}

// jsonDiagnostic mirrors the LSP Diagnostic shape closely enough for a
// client to consume directly, without pulling in a full LSP protocol
// dependency the pack doesn't carry.
type jsonDiagnostic struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Range    struct {
		Start struct{ Line, Character int } `json:"start"`
		End   struct{ Line, Character int } `json:"end"`
	} `json:"range"`
}

// WriteJSON renders the bag as an LSP-flavored JSON diagnostics array.
func (b *Bag) WriteJSON(w io.Writer) error {
	out := make([]jsonDiagnostic, 0, len(b.items))
	for _, d := range b.Items() {
		jd := jsonDiagnostic{Code: FormatCode(d.Severity, d.Code), Severity: d.Severity.String(), Message: d.Message}
		jd.Range.Start.Line, jd.Range.Start.Character = d.Span.Line, d.Span.Col
		out = append(out, jd)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteTerminal renders the bag as human-readable lines, honoring
// NO_COLOR (https://no-color.org/) the way a terminal-facing CLI tool
// should.
func (b *Bag) WriteTerminal(w io.Writer) {
	color := os.Getenv("NO_COLOR") == ""
	for _, d := range b.Items() {
		prefix := FormatCode(d.Severity, d.Code)
		if color {
			fmt.Fprintf(w, "\x1b[1m%s:%d:%d:\x1b[0m %s %s: %s\n",
				"query", d.Span.Line, d.Span.Col, severityTag(d.Severity), prefix, d.Message)
		} else {
			fmt.Fprintf(w, "query:%d:%d: %s %s: %s\n",
				d.Span.Line, d.Span.Col, severityTag(d.Severity), prefix, d.Message)
		}
	}
}

func severityTag(s Severity) string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "error"
	}
}
