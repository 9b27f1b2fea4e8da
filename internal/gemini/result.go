package gemini

// SentinelPrefix marks a failure rendered as user-visible text.
const SentinelPrefix = "ERROR: "

// NoResponse is the failure reason when the service answers without a usable
// completion (non-success status or zero candidates).
const NoResponse = "no response from service"

// Result is the outcome of one model request: either a completion or a
// failure reason. The zero value is a failed result with an empty reason.
type Result struct {
	text   string
	reason string
	ok     bool
}

// Ok wraps a successful completion.
func Ok(text string) Result {
	return Result{text: text, ok: true}
}

// Failed wraps a failure reason.
func Failed(reason string) Result {
	return Result{reason: reason}
}

// OK reports whether the request produced a completion.
func (r Result) OK() bool { return r.ok }

// Text returns the completion, or "" for a failed result.
func (r Result) Text() string { return r.text }

// Reason returns the failure reason, or "" for a successful result.
func (r Result) Reason() string { return r.reason }

// String renders the result the way users see it: the completion verbatim,
// or SentinelPrefix followed by the reason.
func (r Result) String() string {
	if r.ok {
		return r.text
	}
	return SentinelPrefix + r.reason
}
