package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// EnvURL is the environment variable holding the NATS server URL.
const EnvURL = "NATS_URL"

// URL returns the server URL from the environment, falling back to
// nats.DefaultURL.
func URL() string {
	if u := os.Getenv(EnvURL); u != "" {
		return u
	}
	return nats.DefaultURL
}

// NewClient connects to the NATS server named by NATS_URL. Without options the
// connection is named "signalbus" and uses compression.
func NewClient(opts ...nats.Option) (*nats.Conn, error) {
	return Connect(URL(), opts...)
}

// Connect is NewClient for an explicit server URL.
func Connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name("signalbus"), nats.Compression(true))
	}
	return nats.Connect(url, opts...)
}
