package index

import (
	"fmt"
	"strings"

	"github.com/IUBLibTech/ipguide/internal/model"
)

// PrefixTrie stores network records in a plain binary trie keyed on
// AddressKey bits and answers longest-prefix-match queries. It is not
// path compressed; depth is bounded by the 128-bit address width.
// Nodes are created lazily and never removed.
type PrefixTrie struct {
	root *trieNode
}

// A node may carry both children and a record when a network and a
// more specific sub-network are both stored.
type trieNode struct {
	children [2]*trieNode
	record   *model.NetworkRecord
}

func NewPrefixTrie() *PrefixTrie {
	return &PrefixTrie{root: &trieNode{}}
}

// Insert stores rec under the given CIDR network. Inserting the exact
// same prefix again replaces the earlier record.
func (t *PrefixTrie) Insert(network string, rec *model.NetworkRecord) error {
	key, err := Canonicalize(network)
	if err != nil {
		return err
	}
	node := t.root
	for i := 0; i < key.Bits(); i++ {
		b := key.Bit(i)
		if node.children[b] == nil {
			node.children[b] = &trieNode{}
		}
		node = node.children[b]
	}
	node.record = rec
	return nil
}

// Search returns the record of the most specific stored network
// containing address, or nil when no stored network contains it.
// A bare address queries the full host prefix; passing a CIDR string
// queries the range's network address at its prefix length.
func (t *PrefixTrie) Search(address string) (*model.NetworkRecord, error) {
	key, err := Canonicalize(address)
	if err != nil {
		return nil, err
	}
	var best *model.NetworkRecord
	node := t.root
	for i := 0; i < key.Bits(); i++ {
		if node.record != nil {
			best = node.record
		}
		next := node.children[key.Bit(i)]
		if next == nil {
			return best, nil
		}
		node = next
	}
	if node.record != nil {
		best = node.record
	}
	return best, nil
}

// Dump returns a textual bit-path listing of every stored record,
// mainly for debugging. Traversal uses an explicit stack to keep the
// call depth flat.
func (t *PrefixTrie) Dump() string {
	type frame struct {
		node *trieNode
		path string
	}
	var sb strings.Builder
	stack := []frame{{node: t.root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.node.record != nil {
			fmt.Fprintf(&sb, "%s: %s AS%d %s\n",
				f.path, f.node.record.Network, f.node.record.ASN, f.node.record.Country)
		}
		// Push the one-branch first so zero-branch paths print first.
		for b := 1; b >= 0; b-- {
			if child := f.node.children[b]; child != nil {
				stack = append(stack, frame{node: child, path: f.path + string('0'+byte(b))})
			}
		}
	}
	return sb.String()
}
