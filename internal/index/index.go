// Package index builds and queries the in-memory network database:
// a binary prefix trie for longest-prefix-match address lookups plus
// cross indexes by autonomous system and by country. An index is
// built in one pass and is read-only afterward; a refresh builds a
// new index and swaps it in, it never mutates a published one.
package index

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/IUBLibTech/ipguide/internal/model"
)

// LocalASN is the synthetic autonomous system that owns the
// private and reserved ranges seeded into every index.
const LocalASN = 0

// localCountry marks the seeded private ranges in the country index.
const localCountry = "*"

var privateNetworks = []string{
	"10.0.0.0/8",
	"127.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

// NetworkIndex answers "which network, ASN, and country owns this
// address" over a bulk-loaded record set.
type NetworkIndex struct {
	trie      *PrefixTrie
	byASN     map[int]*model.ASNEntry
	byCountry map[string][]int
}

// Build constructs a complete index from an ordered record sequence.
// The private ranges are seeded under ASN 0 before any record is
// consumed. Any unusable record fails the whole build; a partially
// populated index is never returned.
func Build(records []model.RawRecord) (*NetworkIndex, error) {
	ix := &NetworkIndex{
		trie:      NewPrefixTrie(),
		byASN:     make(map[int]*model.ASNEntry),
		byCountry: make(map[string][]int),
	}

	for _, network := range privateNetworks {
		rec := &model.NetworkRecord{Network: network, ASN: LocalASN, Country: localCountry}
		if err := ix.trie.Insert(network, rec); err != nil {
			return nil, err
		}
	}
	ix.byASN[LocalASN] = &model.ASNEntry{
		Name:     "Locally routed network",
		Country:  localCountry,
		Networks: append([]string(nil), privateNetworks...),
	}
	ix.byCountry[localCountry] = []int{LocalASN}

	for _, r := range records {
		if r.ASN < 0 {
			return nil, fmt.Errorf("%w: negative ASN %d for %q", ErrMalformedRecord, r.ASN, r.Network)
		}
		rec := &model.NetworkRecord{Network: r.Network, ASN: r.ASN, Country: r.Country}
		if err := ix.trie.Insert(r.Network, rec); err != nil {
			return nil, fmt.Errorf("%w: network %q: %v", ErrMalformedRecord, r.Network, err)
		}
		entry, ok := ix.byASN[r.ASN]
		if !ok {
			entry = &model.ASNEntry{Name: r.Name, Country: r.Country}
			ix.byASN[r.ASN] = entry
		}
		entry.Networks = append(entry.Networks, r.Network)
		ix.byCountry[r.Country] = append(ix.byCountry[r.Country], r.ASN)
	}

	return ix, nil
}

// FindNetwork returns the record of the most specific network
// containing address, or nil when nothing covers it. The only error
// is ErrInvalidAddress for unparseable input.
func (ix *NetworkIndex) FindNetwork(address string) (*model.NetworkRecord, error) {
	return ix.trie.Search(address)
}

// FindASN returns the entry for asn, reporting whether it is known.
func (ix *NetworkIndex) FindASN(asn int) (*model.ASNEntry, bool) {
	entry, ok := ix.byASN[asn]
	return entry, ok
}

// NetworksForASN returns the networks observed for asn in load order,
// duplicates included; empty when asn is unknown.
func (ix *NetworkIndex) NetworksForASN(asn int) []string {
	entry, ok := ix.byASN[asn]
	if !ok {
		return nil
	}
	return entry.Networks
}

// FindCountry returns every ASN observed for the country code, in
// load order with duplicates; empty when the country is unknown.
func (ix *NetworkIndex) FindCountry(country string) []int {
	return ix.byCountry[country]
}

// ResolveSpecifiers expands each "ASN:<n>" item to that system's
// network list and passes any other item through unchanged. On a
// malformed ASN specifier the input slice is returned as-is along
// with the error, so the caller still has a usable list.
func (ix *NetworkIndex) ResolveSpecifiers(specs []string) ([]string, error) {
	resolved := make([]string, 0, len(specs))
	for _, spec := range specs {
		rest, ok := strings.CutPrefix(spec, "ASN:")
		if !ok {
			resolved = append(resolved, spec)
			continue
		}
		asn, err := strconv.Atoi(rest)
		if err != nil {
			return specs, fmt.Errorf("bad specifier %q: %w", spec, err)
		}
		resolved = append(resolved, ix.NetworksForASN(asn)...)
	}
	return resolved, nil
}

// Dump returns a diagnostic listing of the trie contents.
func (ix *NetworkIndex) Dump() string {
	return ix.trie.Dump()
}
