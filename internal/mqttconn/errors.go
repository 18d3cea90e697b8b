package mqttconn

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
)

// Connection failures, classified from the transport error.
var (
	ErrConnectTimeout     = errors.New("mqttconn: connect timed out")
	ErrAuthRejected       = errors.New("mqttconn: broker rejected credentials")
	ErrNetworkUnreachable = errors.New("mqttconn: network unreachable")
	ErrTLSHandshake       = errors.New("mqttconn: tls handshake failed")
)

// Publish failures.
var (
	ErrNotConnected   = errors.New("mqttconn: not connected")
	ErrBrokerRejected = errors.New("mqttconn: broker rejected publish")
	ErrPublishTimeout = errors.New("mqttconn: publish timed out")
)

// classifyConnectError maps a raw transport error onto one of the exported
// connection error kinds so callers can branch with errors.Is.
func classifyConnectError(err error) error {
	if err == nil {
		return nil
	}

	var recordErr tls.RecordHeaderError
	var certErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &recordErr) || errors.As(err, &certErr) || errors.As(err, &hostErr) {
		return ErrTLSHandshake
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrConnectTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not authorized"), strings.Contains(msg, "not authorised"),
		strings.Contains(msg, "bad user name or password"):
		return ErrAuthRejected
	case strings.Contains(msg, "tls"), strings.Contains(msg, "certificate"):
		return ErrTLSHandshake
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return ErrConnectTimeout
	default:
		return ErrNetworkUnreachable
	}
}
