// Package iprange decides whether a fabric-assigned IPv4 address falls inside
// one of the configured acceptance ranges. Ranges are inclusive on both ends
// and ordered as 32-bit unsigned integers.
package iprange

import (
	"fmt"
	"net/netip"

	"go4.org/netipx"
)

// Range is an inclusive pair of IPv4 boundary addresses.
type Range struct {
	r netipx.IPRange
}

// New builds a Range from dotted-decimal boundary strings.
func New(start, end string) (Range, error) {
	from, err := parseIPv4(start)
	if err != nil {
		return Range{}, fmt.Errorf("range start: %w", err)
	}
	to, err := parseIPv4(end)
	if err != nil {
		return Range{}, fmt.Errorf("range end: %w", err)
	}

	r := netipx.IPRangeFrom(from, to)
	if !r.IsValid() {
		return Range{}, fmt.Errorf("invalid range: start %s is above end %s", start, end)
	}
	return Range{r: r}, nil
}

// Contains reports whether addr lies inside the range, boundaries included.
func (r Range) Contains(addr netip.Addr) bool {
	return r.r.Contains(addr)
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.r.From(), r.r.To())
}

// Set is the collection of acceptance ranges for a hunt.
type Set []Range

// Match parses a dotted-decimal address and reports the first range that
// contains it. A malformed or non-IPv4 address never matches.
func (s Set) Match(ip string) (Range, bool) {
	addr, err := parseIPv4(ip)
	if err != nil {
		return Range{}, false
	}
	for _, r := range s {
		if r.Contains(addr) {
			return r, true
		}
	}
	return Range{}, false
}

func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("address %q is not IPv4", s)
	}
	return addr, nil
}
