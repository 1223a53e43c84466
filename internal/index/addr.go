package index

import (
	"fmt"
	"net/netip"
	"strings"
)

// AddressKey is the canonical trie key: a 128-bit address and a prefix
// length 0-128. IPv4 inputs are stored as their IPv4-mapped IPv6
// equivalent so both families share one address space; an IPv4 query
// can only meet an IPv6 entry through the shared ::ffff:0:0/96 prefix.
type AddressKey struct {
	addr [16]byte
	bits int
}

// Canonicalize parses an address or CIDR network into an AddressKey.
// A bare address implies a full-length host prefix. CIDR inputs are
// masked to their network address.
func Canonicalize(text string) (AddressKey, error) {
	var (
		addr netip.Addr
		bits int
	)
	if strings.Contains(text, "/") {
		prefix, err := netip.ParsePrefix(text)
		if err != nil {
			return AddressKey{}, fmt.Errorf("%w: %q", ErrInvalidAddress, text)
		}
		prefix = prefix.Masked()
		addr = prefix.Addr()
		bits = prefix.Bits()
	} else {
		a, err := netip.ParseAddr(text)
		if err != nil {
			return AddressKey{}, fmt.Errorf("%w: %q", ErrInvalidAddress, text)
		}
		addr = a
		bits = a.BitLen()
	}

	if addr.Is4() {
		bits += 96
	}

	return AddressKey{addr: addr.As16(), bits: bits}, nil
}

// Bits returns the prefix length of the key.
func (k AddressKey) Bits() int {
	return k.bits
}

// Bit returns the i-th bit of the address, most significant first.
func (k AddressKey) Bit(i int) int {
	return int(k.addr[i/8]>>(7-i%8)) & 1
}
