// Package types provides domain models shared across LinguaFlow components.
//
// Kept free of driver imports so that config, db, and store packages can all
// depend on it without cycles. The Backend tag is decided once per process at
// connection time and threaded explicitly through every layer; nothing in the
// persistence stack inspects driver types at runtime.
package types

// Backend identifies which storage engine a connection talks to.
// The value doubles as the database/sql driver name.
type Backend string

const (
	// BackendEmbedded is the file-based, single-writer store used for local
	// development and as the non-production fallback.
	BackendEmbedded Backend = "sqlite3"

	// BackendClientServer is the networked, multi-client store used in
	// production deployments.
	BackendClientServer Backend = "postgres"
)

// DriverName returns the database/sql driver name for the backend.
func (b Backend) DriverName() string { return string(b) }

// String returns a human-readable backend name for logs.
func (b Backend) String() string {
	switch b {
	case BackendEmbedded:
		return "embedded"
	case BackendClientServer:
		return "client-server"
	default:
		return string(b)
	}
}

// ConnectionParams holds everything needed to open a backend connection.
// For BackendClientServer the network fields are set; for BackendEmbedded
// only Path is used. Path ":memory:" selects the ephemeral in-memory store.
type ConnectionParams struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	Path string
}

// MemoryPath is the ConnectionParams.Path sentinel for the ephemeral
// in-memory store used as the last-resort fallback.
const MemoryPath = ":memory:"
