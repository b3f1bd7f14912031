package importer

import (
	"fmt"
	"io"
	"strconv"
)

const DefaultMaxErrors = 10

// Outcome is the result of importing one row.
type Outcome struct {
	Line   int    `json:"line"`
	Reason string `json:"reason,omitempty"` // empty on success
	Err    error  `json:"-"`
}

func (o Outcome) OK() bool { return o.Err == nil }

func (o Outcome) String() string {
	if o.OK() {
		return fmt.Sprintf("line %d: ok", o.Line)
	}
	return fmt.Sprintf("line %d: %s", o.Line, o.Reason)
}

// Report sums up an import. Only the first MaxErrors failure messages are kept; More counts the others.
type Report struct {
	Kind      Kind     `json:"kind"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
	More      int      `json:"more"`

	maxErrors int
	failures  []Outcome // all of them, regardless of maxErrors
}

var failuresHeader = []string{"line", "reason"}

func newReport(kind Kind, maxErrors int) Report {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	return Report{Kind: kind, Errors: []string{}, maxErrors: maxErrors}
}

func (r *Report) add(o Outcome) {
	if o.OK() {
		r.Succeeded++
		return
	}
	r.Failed++
	r.failures = append(r.failures, o)
	if len(r.Errors) < r.maxErrors {
		r.Errors = append(r.Errors, o.String())
	} else {
		r.More++
	}
}

func (r Report) Total() int { return r.Succeeded + r.Failed }

// Messages returns the kept failure messages, followed by "+N more" if some were left out.
func (r Report) Messages() []string {
	msgs := make([]string, 0, len(r.Errors)+1)
	msgs = append(msgs, r.Errors...)
	if r.More > 0 {
		msgs = append(msgs, fmt.Sprintf("+%d more", r.More))
	}
	return msgs
}

func (r Report) Summary() string {
	return fmt.Sprintf("%s import: %d succeeded, %d failed", r.Kind, r.Succeeded, r.Failed)
}

// WriteFailures writes every failed row, including those left out of Errors, as "line,reason" csv.
func (r Report) WriteFailures(w io.Writer) error {
	rows := make([]Row, 0, len(r.failures))
	for _, o := range r.failures {
		rows = append(rows, Row{"line": strconv.Itoa(o.Line), "reason": o.Reason})
	}
	return WriteCSV(w, failuresHeader, rows)
}
