package anthropic

import (
	"io"
	"net/http"
)

type OutcomeKind int

const (
	// OutcomeSuccess is a terminal 2xx response. Body streams the upstream
	// payload and must be closed by the caller.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeUpstreamError is any other terminal response. Text holds the
	// upstream body.
	OutcomeUpstreamError
	// OutcomeExhausted means every attempt failed with a retryable error.
	// Err is set when the last failure was a transport error, otherwise
	// StatusCode, Header and Text describe the last 401 or 429.
	OutcomeExhausted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeUpstreamError:
		return "upstream_error"
	case OutcomeExhausted:
		return "exhausted"
	}

	return "unknown"
}

type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	Text       string
	Err        error
	Attempts   int
}

func (o *Outcome) Close() error {
	if o == nil || o.Body == nil {
		return nil
	}

	return o.Body.Close()
}

type verdict int

const (
	verdictTerminal verdict = iota
	verdictRetryable
)

// classify decides what a single attempt means for the request: transport
// errors, 401 and 429 may succeed with a different key, anything else is the
// upstream's final answer.
func classify(res *http.Response, err error) verdict {
	if err != nil {
		return verdictRetryable
	}

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusTooManyRequests {
		return verdictRetryable
	}

	return verdictTerminal
}

// failure is a remembered retryable attempt.
type failure struct {
	statusCode int
	header     http.Header
	text       string
	err        error
}

func (f *failure) Error() string {
	if f.err != nil {
		return f.err.Error()
	}

	return http.StatusText(f.statusCode)
}

func (f *failure) Unwrap() error {
	return f.err
}

func (f *failure) outcome(attempts int) *Outcome {
	return &Outcome{
		Kind:       OutcomeExhausted,
		StatusCode: f.statusCode,
		Header:     f.header,
		Text:       f.text,
		Err:        f.err,
		Attempts:   attempts,
	}
}
