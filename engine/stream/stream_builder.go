package stream

// ServerBuilderOption is a functional option used to configure a Server at
// construction time.
type ServerBuilderOption func(*streamServer)

// WithAddr sets the TCP address the server listens on. Use port 0 to have
// the operating system pick a free port, readable from Addr after Run.
//
// Parameters:
//   - addr: the listen address in host:port form
//
// Returns:
//   - ServerBuilderOption: the option to apply
func WithAddr(addr string) ServerBuilderOption {
	return func(s *streamServer) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithPath sets the HTTP path the websocket endpoint is served at.
//
// Parameters:
//   - path: the endpoint path, must begin with a slash
//
// Returns:
//   - ServerBuilderOption: the option to apply
func WithPath(path string) ServerBuilderOption {
	return func(s *streamServer) {
		if path != "" {
			s.path = path
		}
	}
}
