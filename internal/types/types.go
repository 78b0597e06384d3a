// Package types provides shared type definitions used across htbnerd packages.
// This package exists to keep the store, the rule catalog and the suggestion
// engine free of import cycles. Types here are fixed-shape values with no
// dependencies beyond the standard library.
package types

import (
	"cmp"
	"fmt"
	"net/netip"
	"strings"
)

// =============================================================================
// SERVICE MODEL
// =============================================================================

// Protocol is the transport protocol of a detected service.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// ParseProtocol normalizes a protocol string. Empty input defaults to tcp,
// which is what Nmap reports when no protocol attribute is present.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tcp":
		return ProtocolTCP, nil
	case "udp":
		return ProtocolUDP, nil
	default:
		return "", fmt.Errorf("%w: unsupported protocol %q", ErrContractViolation, s)
	}
}

// State is the port state reported by the scanner.
type State string

const (
	StateOpen     State = "open"
	StateClosed   State = "closed"
	StateFiltered State = "filtered"
)

// ParseState normalizes a port state string.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return StateOpen, nil
	case "closed":
		return StateClosed, nil
	case "filtered":
		return StateFiltered, nil
	default:
		return "", fmt.Errorf("%w: unsupported port state %q", ErrContractViolation, s)
	}
}

// UnknownService is the canonical name for services the scanner could not identify.
const UnknownService = "unknown"

// NormalizeName lower-cases and trims a scanner service name.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "?" {
		return UnknownService
	}
	return strings.TrimSuffix(name, "?")
}

// Key identifies a service within a challenge.
type Key struct {
	Host     string
	Port     int
	Protocol Protocol
}

// String renders the key as host:port/proto.
func (k Key) String() string {
	return fmt.Sprintf("%s:%d/%s", k.Host, k.Port, k.Protocol)
}

// Service is one detected network endpoint. Values are immutable once built
// through NewService; copy and rebuild to change them.
type Service struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Protocol Protocol `json:"protocol"`
	Name     string   `json:"service_name"`
	Version  string   `json:"version"`
	State    State    `json:"state"`
}

// NewService validates and normalizes a service.
func NewService(host string, port int, proto Protocol, name, version string, state State) (Service, error) {
	s := Service{
		Host:     strings.TrimSpace(host),
		Port:     port,
		Protocol: proto,
		Name:     NormalizeName(name),
		Version:  strings.TrimSpace(version),
		State:    state,
	}
	if err := s.Validate(); err != nil {
		return Service{}, err
	}
	return s, nil
}

// Validate checks the invariants of a service value.
func (s Service) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("%w: service host is empty", ErrContractViolation)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrContractViolation, s.Port)
	}
	switch s.Protocol {
	case ProtocolTCP, ProtocolUDP:
	default:
		return fmt.Errorf("%w: unsupported protocol %q", ErrContractViolation, s.Protocol)
	}
	switch s.State {
	case StateOpen, StateClosed, StateFiltered:
	default:
		return fmt.Errorf("%w: unsupported port state %q", ErrContractViolation, s.State)
	}
	if s.Name == "" || s.Name != strings.ToLower(s.Name) {
		return fmt.Errorf("%w: service name %q is not canonical", ErrContractViolation, s.Name)
	}
	return nil
}

// Key returns the dedup key of the service.
func (s Service) Key() Key {
	return Key{Host: s.Host, Port: s.Port, Protocol: s.Protocol}
}

// IsOpen reports whether the port was seen open.
func (s Service) IsOpen() bool {
	return s.State == StateOpen
}

// Label renders "445/tcp smb" for display.
func (s Service) Label() string {
	return fmt.Sprintf("%d/%s %s", s.Port, s.Protocol, s.Name)
}

// CompareServices orders services by host, then port, then protocol.
// Hosts that both parse as IP addresses compare numerically so that
// 10.10.10.9 sorts before 10.10.10.10.
func CompareServices(a, b Service) int {
	if c := compareHosts(a.Host, b.Host); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Port, b.Port); c != 0 {
		return c
	}
	return cmp.Compare(a.Protocol, b.Protocol)
}

func compareHosts(a, b string) int {
	if a == b {
		return 0
	}
	ipA, errA := netip.ParseAddr(a)
	ipB, errB := netip.ParseAddr(b)
	switch {
	case errA == nil && errB == nil:
		return ipA.Compare(ipB)
	case errA == nil:
		// addresses before hostnames
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
