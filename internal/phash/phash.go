// Package phash computes and compares fixed-width perceptual hashes of images.
//
// Hashes are hex strings of the hash bits (most significant word first).
// The width is size*size bits; a 16x16 hash is 256 bits, 64 hex characters.
package phash

import (
	"fmt"
	"image"
	"math"
	"math/bits"
	"os"
	"strings"

	// Registered decoders for screenshot formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/corona10/goimagehash"

	"github.com/hpungsan/trail/internal/errors"
)

// DefaultSize is the hash side length of the reference configuration.
const DefaultSize = 16

// MaxDistance is returned when two hashes cannot be compared.
const MaxDistance = math.MaxInt

// Compute returns the perceptual hash of the image at path.
// Any failure to read or decode the image is a HASH_FAILED error.
func Compute(path string, size int) (string, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if (size*size)%64 != 0 {
		return "", errors.NewHashFailed(path, fmt.Errorf("hash size %d is not a multiple of 64 bits", size*size))
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewHashFailed(path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", errors.NewHashFailed(path, err)
	}

	return FromImage(img, size)
}

// FromImage returns the perceptual hash of an already decoded image.
func FromImage(img image.Image, size int) (string, error) {
	h, err := goimagehash.ExtPerceptionHash(img, size, size)
	if err != nil {
		return "", errors.NewHashFailed("", err)
	}
	return encode(h.GetHash()), nil
}

func encode(words []uint64) string {
	var sb strings.Builder
	sb.Grow(len(words) * 16)
	for _, w := range words {
		fmt.Fprintf(&sb, "%016x", w)
	}
	return sb.String()
}

// Distance returns the number of differing bits between a and b.
// Hashes of different encoded length (or invalid hex) are never similar:
// the result is MaxDistance.
func Distance(a, b string) int {
	if len(a) != len(b) {
		return MaxDistance
	}
	d := 0
	for i := 0; i < len(a); i++ {
		x, ok1 := nibble(a[i])
		y, ok2 := nibble(b[i])
		if !ok1 || !ok2 {
			return MaxDistance
		}
		d += bits.OnesCount8(x ^ y)
	}
	return d
}

// Bits returns the bit length of an encoded hash.
func Bits(hash string) int {
	return len(hash) * 4
}

func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
