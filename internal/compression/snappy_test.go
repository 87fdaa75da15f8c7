package compression

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestSnappyCompressor_RoundTrip(t *testing.T) {
	compressor := NewSnappyCompressor()

	// A result envelope with many near-identical point rows
	var sb strings.Builder
	sb.WriteString(`{"request_id":"r1","status":"ok","response":{"points":[`)
	for i := 0; i < 500; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `{"ts":"2024-01-%02dT00:00:00Z","value":%d,"violations":[],"violate_rule_1":false}`, i%28+1, i)
	}
	sb.WriteString(`]}}`)
	envelope := []byte(sb.String())

	tests := []struct {
		name string
		data []byte
	}{
		{name: "text", data: []byte("Hello, World! This is a test string for compression.")},
		{name: "binary", data: []byte{0x00, 0xFF, 0x01, 0xFE, 0x02, 0xFD, 0x7F, 0x80, 0x81}},
		{name: "repeating", data: bytes.Repeat([]byte("A"), 1000)},
		{name: "result envelope", data: envelope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := compressor.Compress(tt.data)
			if err != nil {
				t.Fatalf("Compress failed: %v", err)
			}

			decompressed, err := compressor.Decompress(compressed)
			if err != nil {
				t.Fatalf("Decompress failed: %v", err)
			}
			if !bytes.Equal(tt.data, decompressed) {
				t.Error("Decompressed data does not match original")
			}
		})
	}

	compressed, _ := compressor.Compress(envelope)
	if len(compressed) >= len(envelope)/2 {
		t.Errorf("Expected envelope to compress at least 2x, got %d -> %d bytes", len(envelope), len(compressed))
	}
}

func TestSnappyCompressor_EmptyData(t *testing.T) {
	compressor := NewSnappyCompressor()

	compressed, err := compressor.Compress([]byte{})
	if err != nil {
		t.Fatalf("Compress empty data failed: %v", err)
	}
	decompressed, err := compressor.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress empty data failed: %v", err)
	}
	if len(decompressed) != 0 {
		t.Errorf("Expected empty decompressed data, got length %d", len(decompressed))
	}
}

func TestSnappyCompressor_InvalidCompressedData(t *testing.T) {
	_, err := NewSnappyCompressor().Decompress([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if err == nil {
		t.Error("Expected error when decompressing invalid data, got nil")
	}
}

func TestSnappyCompressor_Algorithm(t *testing.T) {
	if NewSnappyCompressor().Algorithm() != Snappy {
		t.Errorf("Expected algorithm Snappy")
	}
}
