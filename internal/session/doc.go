// Package session
// Author: momentics <momentics@gmail.com>
//
// Per-connection state and the registry that owns it.
// Each Connection maps to one accepted socket and moves monotonically
// through Connecting → Open → Closing → Closed. The Registry is the only
// place connections are created, subscribed, or destroyed, and it keeps a
// channel → subscribers index in step with each connection's own set.
//
// Nothing here is safe for concurrent use: the server's event loop is the
// single owner.

package session
