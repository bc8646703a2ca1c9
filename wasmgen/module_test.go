package wasmgen

import (
	"bytes"
	"testing"
)

func TestULEBEncoding(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		writeULEB(&buf, tc.v)
		if !bytes.Equal(buf.Bytes(), tc.want) {
			t.Errorf("uleb(%d) = %x, want %x", tc.v, buf.Bytes(), tc.want)
		}
	}
}

func TestSLEBEncoding(t *testing.T) {
	tests := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x7f}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-64, []byte{0x40}},
		{-123456, []byte{0xc0, 0xbb, 0x78}},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		writeSLEB(&buf, tc.v)
		if !bytes.Equal(buf.Bytes(), tc.want) {
			t.Errorf("sleb(%d) = %x, want %x", tc.v, buf.Bytes(), tc.want)
		}
	}
}

func TestEncodeHeader(t *testing.T) {
	m := NewModule()
	bin := m.Encode()

	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(bin, want) {
		t.Errorf("empty module = %x, want just the header %x", bin, want)
	}
}

func TestEncodeSectionsPresent(t *testing.T) {
	m := NewModule()
	m.Memory(1)
	g := m.GlobalI32(8, false)

	var c Code
	c.I32Const(42)
	fn := m.Func(FuncType{Results: []ValType{I32}}, nil, c.Bytes())

	m.ExportFunc("answer", fn)
	m.ExportGlobal("offset", g)
	m.ExportMemory("memory")

	bin := m.Encode()

	for _, name := range []string{"answer", "offset", "memory"} {
		if !bytes.Contains(bin, []byte(name)) {
			t.Errorf("export name %q missing from binary", name)
		}
	}

	// Section ids must appear in order after the 8-byte header.
	order := []byte{sectionType, sectionFunction, sectionMemory, sectionGlobal, sectionExport, sectionCode}
	pos := 8
	for _, id := range order {
		if pos >= len(bin) || bin[pos] != id {
			t.Fatalf("expected section id %d at offset %d", id, pos)
		}
		// skip size
		size, n := readULEB(bin[pos+1:])
		pos += 1 + n + int(size)
	}
	if pos != len(bin) {
		t.Errorf("trailing bytes after last section: %d != %d", pos, len(bin))
	}
}

func TestSyntheticHostBufferShape(t *testing.T) {
	bin := SyntheticHostBuffer("rapids:memory/host-buffer")

	for _, name := range []string{
		"rapids:memory/host-buffer#allocate",
		"rapids:memory/host-buffer#address",
		"rapids:memory/host-buffer#length",
		"memory",
	} {
		if !bytes.Contains(bin, []byte(name)) {
			t.Errorf("synthetic guest missing export %q", name)
		}
	}
}

// readULEB is the test-side decoder for walking section sizes.
func readULEB(b []byte) (uint32, int) {
	var v uint32
	var shift uint
	for i, c := range b {
		v |= uint32(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
	}
	return v, len(b)
}
