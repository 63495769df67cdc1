package webclient

import "time"

// Config describes how to reach a sightline server.
type Config struct {
	// BaseURL is prepended to request URLs that start with "/".
	BaseURL string

	// Username and Password are sent as HTTP Basic auth when Password is set.
	Username string
	Password string

	// Timeout bounds each request when no *http.Client is supplied.
	Timeout time.Duration
}
