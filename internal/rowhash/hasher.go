// Package rowhash implements the content-hash contract: a deterministic,
// type-tagged byte encoding of a row's ordered value tuple, digested by
// one of two pluggable algorithms.
package rowhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"

	"btx/internal/errs"
)

const (
	tagNull      byte = 0x00
	tagBool      byte = 0x01
	tagInt       byte = 0x02
	tagFloat     byte = 0x03
	tagNaN       byte = 0x04
	tagDate      byte = 0x05
	tagTimestamp byte = 0x06
	tagString    byte = 0x07
)

// Hasher digests an encoded value-tuple octet stream into a fixed-width
// hex token.
type Hasher interface {
	// Sum returns the hex-encoded digest of the tagged octet stream.
	Sum(encoded []byte) string
	// Name is the canonical (non-aliased) algorithm name.
	Name() string
}

type xxHasher struct{}

func (xxHasher) Sum(encoded []byte) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64(encoded))
	return hex.EncodeToString(buf[:])
}

func (xxHasher) Name() string { return "xxhash" }

type sha256Hasher struct{}

func (sha256Hasher) Sum(encoded []byte) string {
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

func (sha256Hasher) Name() string { return "sha256" }

// Resolve looks up a Hasher by name, accepting the documented
// case-insensitive aliases: {xxhash, xx} and {sha256, sha}.
func Resolve(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "xxhash", "xx", "":
		return xxHasher{}, nil
	case "sha256", "sha":
		return sha256Hasher{}, nil
	default:
		return nil, &errs.BadAlgorithmError{Requested: name}
	}
}

// Encode appends the type-tagged octet encoding of values, in order, to
// dst and returns the extended slice.
func Encode(dst []byte, values []Value) []byte {
	for _, v := range values {
		dst = encodeOne(dst, v)
	}
	return dst
}

func encodeOne(dst []byte, v Value) []byte {
	switch v.Kind {
	case KindNull:
		return append(dst, tagNull)
	case KindBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return append(dst, tagBool, b)
	case KindInt:
		dst = append(dst, tagInt)
		return appendUint64BE(dst, uint64(v.Int))
	case KindFloat:
		dst = append(dst, tagFloat)
		return appendUint64BE(dst, math.Float64bits(v.Float))
	case KindNaN:
		return append(dst, tagNaN)
	case KindDate:
		dst = append(dst, tagDate)
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(v.Days))
		return append(dst, buf[:]...)
	case KindTimestamp:
		dst = append(dst, tagTimestamp)
		return appendUint64BE(dst, uint64(v.Micro))
	case KindString:
		dst = append(dst, tagString)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v.Str)))
		dst = append(dst, lenBuf[:]...)
		return append(dst, v.Str...)
	default:
		panic(fmt.Sprintf("rowhash: unreachable value kind %d", v.Kind))
	}
}

func appendUint64BE(dst []byte, u uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], u)
	return append(dst, buf[:]...)
}
