// Package ids holds the small set of identifier types shared across the
// lobby, registry, username and connection-handling packages, kept
// separate to avoid import cycles between them.
package ids

// Con identifies one websocket connection, process-wide. The reference
// implementation uses the connection's remote TCP port; any scheme that
// stays unique for the connection's lifetime is acceptable.
type Con uint16

// LobbyName identifies a lobby, process-wide and for its entire lifetime.
type LobbyName string

// UserName identifies a claimed username, process-wide while held.
type UserName string
