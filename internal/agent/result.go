package agent

// Field is one named value of a result record.
type Field struct {
	Name  string
	Value string
}

// Record is an ordered set of fields describing one item.
type Record []Field

// ToolResult is the outcome of a dispatched tool call: a list of
// records, a single record, or a failure.
type ToolResult struct {
	// Target is the identifier the call acted on, if any.
	Target string

	Items []Record
	Item  Record

	single bool
	err    error
}

// ListResult wraps a list payload.
func ListResult(items []Record) ToolResult {
	return ToolResult{Items: items}
}

// ObjectResult wraps a single-object payload.
func ObjectResult(target string, item Record) ToolResult {
	return ToolResult{Target: target, Item: item, single: true}
}

// FailedResult wraps the reason a tool call could not complete.
func FailedResult(target string, err error) ToolResult {
	return ToolResult{Target: target, err: err}
}

// Failed reports whether the call failed.
func (r ToolResult) Failed() bool {
	return r.err != nil
}

// Err returns the failure reason, or nil.
func (r ToolResult) Err() error {
	return r.err
}

// Single reports whether the payload is one object rather than a list.
func (r ToolResult) Single() bool {
	return r.single
}
