package domain

// BuildRequest is one accepted build-and-run request. It is not modified
// after the orchestrator receives it.
type BuildRequest struct {
	// Workspace is the directory holding the application source and the
	// build recipe. It is deleted when the request terminates.
	Workspace string
	// ImageName tags the built image and names the container.
	ImageName string
	// HostPort is the port published on the host.
	HostPort int
}

// BuildEvent is one message from an image build stream.
type BuildEvent struct {
	Stream string
	Error  string
}

// Fatal reports whether the event aborts the build.
func (e BuildEvent) Fatal() bool {
	return e.Error != ""
}

// Result is the terminal outcome of a build-and-run request: either a list
// of reachable URLs or an error with any container output captured.
type Result struct {
	URLs []string
	Err  error
	Logs string
}

// OK reports whether the request succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// StatusCode maps the result onto the HTTP status reported to callers.
func (r Result) StatusCode() int {
	switch {
	case r.Err == nil:
		return 200
	case IsValidation(r.Err):
		return 400
	default:
		return 500
	}
}
