// Package storage abstracts where the pipeline reads inputs from and writes
// outputs to. Names are slash-separated paths relative to a store root.
package storage

import "context"

type Store interface {
	// List returns the file names directly under dir, sorted ascending.
	// A missing directory is an empty listing, not an error.
	List(ctx context.Context, dir string) ([]string, error)

	Read(ctx context.Context, name string) ([]byte, error)

	// Write creates or replaces name, creating parents as needed.
	Write(ctx context.Context, name string, data []byte) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}
