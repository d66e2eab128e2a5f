// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envcodec

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies how a payload was compressed. The values are
// part of the encoding read by launched children.
type CompressionTag uint8

const (
	CompressionNone CompressionTag = 0
	CompressionLZ4  CompressionTag = 1
	CompressionZstd CompressionTag = 2
)

func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// maxPayloadSize bounds the uncompressed size a header may claim.
const maxPayloadSize = 256 << 20

var errIncompressible = errors.New("data is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		panic("envcodec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("envcodec: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress returns data framed as tag, uncompressed length (uvarint) and
// body, using whichever algorithm produces the smallest body.
func Compress(data []byte) []byte {
	tag, body := CompressionNone, data
	if compressed, err := compressZstd(data); err == nil {
		tag, body = CompressionZstd, compressed
	}
	if compressed, err := compressLZ4(data); err == nil && len(compressed) < len(body) {
		tag, body = CompressionLZ4, compressed
	}

	framed := make([]byte, 0, 1+binary.MaxVarintLen64+len(body))
	framed = append(framed, byte(tag))
	framed = binary.AppendUvarint(framed, uint64(len(data)))
	return append(framed, body...)
}

// Decompress reverses [Compress].
func Decompress(framed []byte) ([]byte, error) {
	if len(framed) < 2 {
		return nil, fmt.Errorf("payload too short: %d bytes", len(framed))
	}
	tag := CompressionTag(framed[0])
	size, read := binary.Uvarint(framed[1:])
	if read <= 0 {
		return nil, fmt.Errorf("payload header: invalid length")
	}
	if size > maxPayloadSize {
		return nil, fmt.Errorf("payload header: length %d exceeds limit %d", size, maxPayloadSize)
	}
	body := framed[1+read:]

	switch tag {
	case CompressionNone:
		if uint64(len(body)) != size {
			return nil, fmt.Errorf("uncompressed payload: size %d does not match header %d", len(body), size)
		}
		return body, nil
	case CompressionLZ4:
		destination := make([]byte, size)
		written, err := lz4.UncompressBlock(body, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint64(written) != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", written, size)
		}
		return destination, nil
	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(body, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint64(len(result)) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag: %s", tag)
	}
}

// Encode compresses data and returns it as environment-safe text.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(Compress(data))
}

// Decode reverses [Encode].
func Decode(text string) ([]byte, error) {
	framed, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return Decompress(framed)
}

// TagOf returns the compression tag of an encoded value without
// decompressing it.
func TagOf(text string) (CompressionTag, error) {
	framed, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return 0, fmt.Errorf("decoding payload: %w", err)
	}
	if len(framed) == 0 {
		return 0, fmt.Errorf("empty payload")
	}
	return CompressionTag(framed[0]), nil
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}
