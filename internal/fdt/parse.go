package fdt

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"
)

// Parse decodes an FDT blob into its node tree. Property values are kept as
// raw bytes; use Property accessors such as AsU32 to interpret them.
func Parse(blob []byte) (Node, error) {
	if len(blob) < fdtHeaderSize {
		return Node{}, fmt.Errorf("fdt: blob too short (%d bytes)", len(blob))
	}
	if magic := binary.BigEndian.Uint32(blob[0:4]); magic != fdtMagic {
		return Node{}, fmt.Errorf("fdt: bad magic 0x%08x", magic)
	}
	if version := binary.BigEndian.Uint32(blob[20:24]); version < fdtLastCompVer {
		return Node{}, fmt.Errorf("fdt: unsupported version %d", version)
	}

	region := func(field string, off, size uint32) ([]byte, error) {
		start, err := safecast.Conv[int](off)
		if err != nil {
			return nil, fmt.Errorf("fdt: %s offset: %w", field, err)
		}
		length, err := safecast.Conv[int](size)
		if err != nil {
			return nil, fmt.Errorf("fdt: %s size: %w", field, err)
		}
		if start < fdtHeaderSize || start+length > len(blob) || start+length < start {
			return nil, fmt.Errorf("fdt: %s block out of bounds (off=%d size=%d blob=%d)",
				field, start, length, len(blob))
		}
		return blob[start : start+length], nil
	}

	structBlock, err := region("structure",
		binary.BigEndian.Uint32(blob[8:12]), binary.BigEndian.Uint32(blob[36:40]))
	if err != nil {
		return Node{}, err
	}
	stringsBlock, err := region("strings",
		binary.BigEndian.Uint32(blob[12:16]), binary.BigEndian.Uint32(blob[32:36]))
	if err != nil {
		return Node{}, err
	}

	p := &parser{data: structBlock, strings: stringsBlock}

	for {
		tok, err := p.token()
		if err != nil {
			return Node{}, err
		}
		if tok == fdtNopToken {
			continue
		}
		if tok != fdtBeginNodeToken {
			return Node{}, fmt.Errorf("fdt: expected root node, got token 0x%x", tok)
		}
		break
	}

	name, err := p.nodeName()
	if err != nil {
		return Node{}, err
	}
	root, err := p.parseNode(name)
	if err != nil {
		return Node{}, err
	}

	for {
		tok, err := p.token()
		if err != nil {
			return Node{}, err
		}
		if tok == fdtNopToken {
			continue
		}
		if tok != fdtEndToken {
			return Node{}, fmt.Errorf("fdt: trailing token 0x%x after root node", tok)
		}
		return root, nil
	}
}

type parser struct {
	data    []byte
	strings []byte
	off     int
}

func (p *parser) token() (uint32, error) {
	if p.off+4 > len(p.data) {
		return 0, fmt.Errorf("fdt: truncated structure block at offset %d", p.off)
	}
	tok := binary.BigEndian.Uint32(p.data[p.off:])
	p.off += 4
	return tok, nil
}

func (p *parser) nodeName() (string, error) {
	end := bytes.IndexByte(p.data[p.off:], 0)
	if end < 0 {
		return "", fmt.Errorf("fdt: unterminated node name at offset %d", p.off)
	}
	name := string(p.data[p.off : p.off+end])
	p.off += end + 1
	p.align()
	return name, nil
}

func (p *parser) align() {
	for p.off%4 != 0 {
		p.off++
	}
}

func (p *parser) property() (string, []byte, error) {
	length, err := p.token()
	if err != nil {
		return "", nil, err
	}
	nameOff, err := p.token()
	if err != nil {
		return "", nil, err
	}

	size, err := safecast.Conv[int](length)
	if err != nil {
		return "", nil, fmt.Errorf("fdt: property length: %w", err)
	}
	if p.off+size > len(p.data) {
		return "", nil, fmt.Errorf("fdt: property value overruns structure block at offset %d", p.off)
	}
	value := p.data[p.off : p.off+size]
	p.off += size
	p.align()

	start, err := safecast.Conv[int](nameOff)
	if err != nil || start >= len(p.strings) {
		return "", nil, fmt.Errorf("fdt: property name offset %d out of bounds", nameOff)
	}
	end := bytes.IndexByte(p.strings[start:], 0)
	if end < 0 {
		return "", nil, fmt.Errorf("fdt: unterminated property name at offset %d", start)
	}

	return string(p.strings[start : start+end]), value, nil
}

func (p *parser) parseNode(name string) (Node, error) {
	node := Node{Name: name}
	for {
		tok, err := p.token()
		if err != nil {
			return Node{}, err
		}
		switch tok {
		case fdtPropToken:
			pname, value, err := p.property()
			if err != nil {
				return Node{}, err
			}
			if node.Properties == nil {
				node.Properties = make(map[string]Property)
			}
			prop := Property{Flag: true}
			if len(value) > 0 {
				prop = Property{Bytes: append([]byte(nil), value...)}
			}
			node.Properties[pname] = prop
		case fdtBeginNodeToken:
			cname, err := p.nodeName()
			if err != nil {
				return Node{}, err
			}
			child, err := p.parseNode(cname)
			if err != nil {
				return Node{}, err
			}
			node.Children = append(node.Children, child)
		case fdtNopToken:
		case fdtEndNodeToken:
			return node, nil
		default:
			return Node{}, fmt.Errorf("fdt: unexpected token 0x%x in node %q", tok, name)
		}
	}
}
