package integration

import "math/rand/v2"

const (
	socketIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	socketIDLength   = 12
)

// NewSocketID returns a fresh identity in the gateway's socket-id shape:
// twelve characters from [A-Za-z0-9] followed by a literal '='. Connection
// and message ids share this shape. The ids are not cryptographically strong;
// they only need to stay collision-free within one process uptime, which the
// session manager enforces at insert time.
func NewSocketID() string {
	buf := make([]byte, socketIDLength+1)
	for i := 0; i < socketIDLength; i++ {
		buf[i] = socketIDAlphabet[rand.IntN(len(socketIDAlphabet))]
	}
	buf[socketIDLength] = '='
	return string(buf)
}
