package oracle

// FailureKind tags why an oracle call failed.
type FailureKind string

const (
	RateLimited        FailureKind = "rate_limited"
	Timeout            FailureKind = "timeout"
	UpstreamError      FailureKind = "upstream_error"
	ParseErrorUpstream FailureKind = "parse_error_upstream"
)

// Failure is the structured error an Ask call returns on a non-success path.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// AsFailure extracts a *Failure from err, if it is one.
func AsFailure(err error) (*Failure, bool) {
	f, ok := err.(*Failure)
	return f, ok
}
