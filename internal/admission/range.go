package admission

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformedAddress = errors.New("malformed IPv4 address")

// Range is an IPv4 network given as base address and prefix length.
type Range struct {
	Base   uint32
	Prefix uint8
}

// ParseIPv4 packs a dotted-quad address into a uint32, first octet in the high byte.
func ParseIPv4(raw string) (uint32, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("%w: %q has %d octets", ErrMalformedAddress, raw, len(parts))
	}

	var addr uint32
	for _, part := range parts {
		octet, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: bad octet %q", ErrMalformedAddress, raw, part)
		}
		addr = addr<<8 | uint32(octet)
	}
	return addr, nil
}

func FormatIPv4(addr uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}

// ParseRange reads "a.b.c.d/n". Host bits in the base are kept as written;
// Contains masks both sides.
func ParseRange(cidr string) (Range, error) {
	base, bits, ok := strings.Cut(strings.TrimSpace(cidr), "/")
	if !ok {
		return Range{}, fmt.Errorf("range %q: missing prefix length", cidr)
	}

	addr, err := ParseIPv4(base)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", cidr, err)
	}

	prefix, err := strconv.ParseUint(bits, 10, 8)
	if err != nil || prefix > 32 {
		return Range{}, fmt.Errorf("range %q: prefix length must be 0-32", cidr)
	}

	return Range{Base: addr, Prefix: uint8(prefix)}, nil
}

func (r Range) Mask() uint32 {
	if r.Prefix == 0 {
		return 0
	}
	return ^uint32(0) << (32 - uint32(r.Prefix))
}

func (r Range) Contains(addr uint32) bool {
	mask := r.Mask()
	return addr&mask == r.Base&mask
}

func (r Range) String() string {
	return fmt.Sprintf("%s/%d", FormatIPv4(r.Base), r.Prefix)
}
