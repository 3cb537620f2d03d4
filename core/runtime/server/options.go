package server

type RuntimeOption func(*Runtime)

// WithPort overrides server.port from the configuration
func WithPort(port string) RuntimeOption {
	return func(r *Runtime) {
		if port != "" {
			r.port = port
		}
	}
}

// WithVersion sets the service version reported to telemetry
func WithVersion(version string) RuntimeOption {
	return func(r *Runtime) {
		r.version = version
	}
}

// WithoutTelemetry skips OpenTelemetry provider setup
func WithoutTelemetry() RuntimeOption {
	return func(r *Runtime) {
		r.telemetry = false
	}
}
