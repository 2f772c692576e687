// Package fdt builds and parses Flattened Device Tree (FDT) blobs.
package fdt

import (
	"encoding/binary"
	"strings"
)

// Property describes a single device-tree property. When constructing a tree
// exactly one of the typed fields should be populated; parsed properties
// carry their raw value in Bytes.
type Property struct {
	Strings []string `json:"strings,omitempty"`
	U32     []uint32 `json:"u32,omitempty"`
	U64     []uint64 `json:"u64,omitempty"`
	Bytes   []byte   `json:"bytes,omitempty"`
	Flag    bool     `json:"flag,omitempty"`
}

// Kind returns the name of the populated field or an empty string if none are set.
func (p Property) Kind() string {
	switch {
	case len(p.Strings) > 0:
		return "strings"
	case len(p.U32) > 0:
		return "u32"
	case len(p.U64) > 0:
		return "u64"
	case len(p.Bytes) > 0:
		return "bytes"
	case p.Flag:
		return "flag"
	default:
		return ""
	}
}

// DefinedCount reports how many distinct fields on the property are populated.
func (p Property) DefinedCount() int {
	count := 0
	if len(p.Strings) > 0 {
		count++
	}
	if len(p.U32) > 0 {
		count++
	}
	if len(p.U64) > 0 {
		count++
	}
	if len(p.Bytes) > 0 {
		count++
	}
	if p.Flag {
		count++
	}
	return count
}

// AsU32 returns the property value as a u32 array. Properties populated with
// U32 values return them directly; parsed properties decode their raw
// big-endian bytes. A raw value whose length is not a multiple of four
// returns nil.
func (p Property) AsU32() []uint32 {
	if len(p.U32) > 0 {
		return p.U32
	}
	if len(p.Bytes) == 0 || len(p.Bytes)%4 != 0 {
		return nil
	}
	out := make([]uint32, len(p.Bytes)/4)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(p.Bytes[i*4:])
	}
	return out
}

// Node describes a device-tree node.
type Node struct {
	Name       string              `json:"name"`
	Properties map[string]Property `json:"properties,omitempty"`
	Children   []Node              `json:"children,omitempty"`
}

// Child returns the direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for i := range n.Children {
		if n.Children[i].Name == name {
			return &n.Children[i]
		}
	}
	return nil
}

// Lookup resolves a slash-separated path relative to n (normally the root
// node, whose own name is not part of the path). It returns nil if any
// component is missing.
func (n *Node) Lookup(path string) *Node {
	cur := n
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		cur = cur.Child(part)
		if cur == nil {
			return nil
		}
	}
	return cur
}
