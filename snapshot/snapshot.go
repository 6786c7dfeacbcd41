package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hupe1980/raggo/corpus"
)

const (
	// magicNumber identifies snapshot files (ASCII: "RGS0").
	magicNumber = 0x52475330
	// formatVersion is the current file format version.
	formatVersion = 1

	// maxNameLen bounds the codec and compression name fields.
	maxNameLen = 64
	// maxPayloadLen bounds the payload length field so a corrupted header
	// cannot drive a huge allocation.
	maxPayloadLen = 4 << 30
)

var (
	ErrInvalidMagic       = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("unsupported format version")
	ErrUnknownCodec       = errors.New("unknown codec")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrInvalidPayloadLen  = errors.New("invalid payload length")
)

// Options configures how a snapshot is written.
type Options struct {
	// Codec encodes the corpus state. Defaults to JSON.
	Codec Codec
	// Compression is applied to the encoded payload. Defaults to zstd.
	Compression Compression
}

// DefaultOptions are the recommended write settings.
var DefaultOptions = Options{
	Codec:       JSON{},
	Compression: CompressionZstd,
}

// Save writes the corpus state to w.
//
// Layout: magic, version, codec name, compression name, payload checksum
// (CRC32/IEEE of the compressed bytes), payload length, payload. All integers
// are little-endian.
func Save(w io.Writer, st *corpus.State, optFns ...func(o *Options)) error {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	encoded, err := opts.Codec.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	payload, err := compress(opts.Compression, encoded)
	if err != nil {
		return fmt.Errorf("compress state: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(magicNumber)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(formatVersion)); err != nil {
		return err
	}
	if err := writeName(w, opts.Codec.Name()); err != nil {
		return err
	}
	if err := writeName(w, string(opts.Compression)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, crc32.ChecksumIEEE(payload)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(payload))); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// Load reads a snapshot written by Save and returns the decoded corpus state.
// The codec and compression are selected from the file header.
func Load(r io.Reader) (*corpus.State, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != magicNumber {
		return nil, fmt.Errorf("%w: 0x%08x", ErrInvalidMagic, magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}

	codecName, err := readName(r)
	if err != nil {
		return nil, fmt.Errorf("read codec name: %w", err)
	}
	codec, ok := codecByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codecName)
	}
	compressionName, err := readName(r)
	if err != nil {
		return nil, fmt.Errorf("read compression name: %w", err)
	}

	var checksum uint32
	if err := binary.Read(r, binary.LittleEndian, &checksum); err != nil {
		return nil, fmt.Errorf("read checksum: %w", err)
	}
	var payloadLen uint64
	if err := binary.Read(r, binary.LittleEndian, &payloadLen); err != nil {
		return nil, fmt.Errorf("read payload length: %w", err)
	}

	if payloadLen > maxPayloadLen {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPayloadLen, payloadLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if actual := crc32.ChecksumIEEE(payload); actual != checksum {
		return nil, fmt.Errorf("%w: expected 0x%08x, got 0x%08x", ErrChecksumMismatch, checksum, actual)
	}

	encoded, err := decompress(Compression(compressionName), payload)
	if err != nil {
		return nil, fmt.Errorf("decompress state: %w", err)
	}
	var st corpus.State
	if err := codec.Unmarshal(encoded, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

func writeName(w io.Writer, name string) error {
	if len(name) == 0 || len(name) > maxNameLen {
		return fmt.Errorf("invalid name length %d", len(name))
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(len(name))); err != nil {
		return err
	}
	_, err := io.WriteString(w, name)
	return err
}

func readName(r io.Reader) (string, error) {
	var n uint8
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n == 0 || n > maxNameLen {
		return "", fmt.Errorf("invalid name length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
