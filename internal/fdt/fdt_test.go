package fdt

import (
	"testing"
)

func testTree() Node {
	return Node{
		Name: "",
		Properties: map[string]Property{
			"compatible": {Strings: []string{"test,platform"}},
		},
		Children: []Node{
			{
				Name: "ibm,opal",
				Children: []Node{
					{
						Name: "power-mgt",
						Properties: map[string]Property{
							"ibm,cpu-idle-state-flags":        {U32: []uint32{0x00010000, 0x00020000}},
							"ibm,cpu-idle-state-latencies-ns": {U32: []uint32{10000, 100000}},
							"has-stop-states":                 {Flag: true},
						},
					},
				},
			},
			{
				Name: "memory@0",
				Properties: map[string]Property{
					"reg": {U64: []uint64{0, 0x10000000}},
				},
			},
		},
	}
}

func TestBuildParseRoundTrip(t *testing.T) {
	blob, err := Build(testTree())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	root, err := Parse(blob)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	node := root.Lookup("ibm,opal/power-mgt")
	if node == nil {
		t.Fatalf("power-mgt node not found after round trip")
	}

	flags := node.Properties["ibm,cpu-idle-state-flags"].AsU32()
	if len(flags) != 2 || flags[0] != 0x00010000 || flags[1] != 0x00020000 {
		t.Fatalf("flags round trip: %#v", flags)
	}
	latencies := node.Properties["ibm,cpu-idle-state-latencies-ns"].AsU32()
	if len(latencies) != 2 || latencies[0] != 10000 || latencies[1] != 100000 {
		t.Fatalf("latencies round trip: %#v", latencies)
	}
	if !node.Properties["has-stop-states"].Flag {
		t.Fatalf("empty property did not round trip as a flag")
	}

	if root.Lookup("memory@0") == nil {
		t.Fatalf("sibling node lost in round trip")
	}
}

func TestLookupMissing(t *testing.T) {
	blob, err := Build(testTree())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	root, err := Parse(blob)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if root.Lookup("ibm,opal/nonexistent") != nil {
		t.Fatalf("Lookup invented a node")
	}
	if root.Lookup("wrong/power-mgt") != nil {
		t.Fatalf("Lookup matched the wrong parent")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Fatalf("nil blob parsed")
	}
	if _, err := Parse(make([]byte, 8)); err == nil {
		t.Fatalf("short blob parsed")
	}

	blob, err := Build(testTree())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	blob[0] ^= 0xff
	if _, err := Parse(blob); err == nil {
		t.Fatalf("bad magic parsed")
	}
	blob[0] ^= 0xff
	if _, err := Parse(blob[:len(blob)-16]); err == nil {
		t.Fatalf("truncated blob parsed")
	}
}

func TestPropertyAsU32(t *testing.T) {
	if got := (Property{Bytes: []byte{0, 0, 0, 5, 0, 0, 1, 0}}).AsU32(); len(got) != 2 || got[0] != 5 || got[1] != 256 {
		t.Fatalf("big-endian decode: %#v", got)
	}
	if got := (Property{Bytes: []byte{1, 2, 3}}).AsU32(); got != nil {
		t.Fatalf("unaligned bytes decoded: %#v", got)
	}
	if got := (Property{}).AsU32(); got != nil {
		t.Fatalf("empty property decoded: %#v", got)
	}
}
