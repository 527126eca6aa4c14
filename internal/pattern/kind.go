package pattern

import (
	"fmt"
	"strings"
)

// Kind classifies a detected substring.
// The declaration order is the matching priority: a text is checked for
// emails first, then IPv4, then IPv6.
type Kind int

const (
	// KindEmail is an email address.
	KindEmail Kind = iota

	// KindIPv4 is a dotted-quad IPv4 address.
	KindIPv4

	// KindIPv6 is an IPv6 address in full or compressed form.
	KindIPv6
)

// Kinds lists every kind in priority order.
var Kinds = []Kind{KindEmail, KindIPv4, KindIPv6}

// Group names the setting flag that governs a kind.
type Group string

const (
	// GroupEmail is governed by the hideEmails flag.
	GroupEmail Group = "email"

	// GroupIP is governed by the hideIps flag.
	GroupIP Group = "ip"
)

// String returns the lowercase name used in markup and reports.
func (k Kind) String() string {
	switch k {
	case KindEmail:
		return "email"
	case KindIPv4:
		return "ipv4"
	case KindIPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// Group returns the setting group of the kind.
func (k Kind) Group() Group {
	if k == KindEmail {
		return GroupEmail
	}
	return GroupIP
}

// ParseKind converts a name produced by Kind.String back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return KindEmail, nil
	case "ipv4":
		return KindIPv4, nil
	case "ipv6":
		return KindIPv6, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// KindSet is a small bit set of kinds.
type KindSet uint8

// AllKinds contains every kind.
const AllKinds KindSet = 1<<KindEmail | 1<<KindIPv4 | 1<<KindIPv6

// NewKindSet builds a set from the given kinds.
func NewKindSet(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s = s.With(k)
	}
	return s
}

// With returns a copy of the set that also contains k.
func (s KindSet) With(k Kind) KindSet {
	return s | 1<<k
}

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool {
	return s&(1<<k) != 0
}

// Empty reports whether the set has no kinds.
func (s KindSet) Empty() bool {
	return s == 0
}
