// Package webclient is the HTTP transport the dashboard controller and
// sightctl use to talk to a sightline server.
package webclient

import "context"

type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Close() error
}
