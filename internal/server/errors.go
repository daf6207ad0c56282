// Package server implements the command surface of the daemon: the wire
// protocol, the dispatcher that routes commands to the core components,
// and the UNIX socket server that carries them.
package server

import (
	"fmt"
	"strings"
)

// Kind is the short token identifying an error class in a wire reply.
// CLI callers pattern-match on it without parsing JSON.
type Kind string

const (
	KindConfig   Kind = "config"
	KindBind     Kind = "bind"
	KindStore    Kind = "store"
	KindProtocol Kind = "protocol"
	KindBridge   Kind = "bridge"
	KindExternal Kind = "external"
)

const (
	// ReplySigil prefixes every successful human-readable reply.
	ReplySigil = "✦ "
	// ErrorSigil prefixes every error reply.
	ErrorSigil = "✗ "
)

// Errorf renders an error reply: sigil, kind token, message.
func Errorf(kind Kind, format string, args ...interface{}) string {
	return fmt.Sprintf("%s%s: %s", ErrorSigil, kind, fmt.Sprintf(format, args...))
}

// Replyf renders a successful human-readable reply.
func Replyf(format string, args ...interface{}) string {
	return ReplySigil + fmt.Sprintf(format, args...)
}

// IsError reports whether a wire payload is an error reply.
func IsError(payload string) bool {
	return strings.HasPrefix(payload, ErrorSigil)
}
