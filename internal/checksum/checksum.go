package checksum

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/yuya-takeyama/movenseed/internal/apperr"
	"github.com/zeebo/blake3"
)

// DefaultChunkSize bounds the read buffer regardless of file size.
const DefaultChunkSize = 1 << 20 // 1MiB

// DefaultAlgorithm matches the digests in hashes.mns files written by earlier releases.
const DefaultAlgorithm = "sha1"

// Algorithm describes a digest usable for hashes.mns
type Algorithm struct {
	Name string
	Size int // digest size in bytes
	New  func() hash.Hash
}

// HexLen returns the width of the hex digest stored in hashes.mns
func (a *Algorithm) HexLen() int {
	return a.Size * 2
}

var algorithms = map[string]*Algorithm{
	"sha1":   {Name: "sha1", Size: sha1.Size, New: sha1.New},
	"sha256": {Name: "sha256", Size: sha256.Size, New: sha256.New},
	"sha512": {Name: "sha512", Size: sha512.Size, New: sha512.New},
	"blake3": {Name: "blake3", Size: 32, New: func() hash.Hash { return blake3.New() }},
}

// Lookup returns the algorithm registered under name (case-insensitive)
func Lookup(name string) (*Algorithm, error) {
	alg, ok := algorithms[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported hash algorithm: %s (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return alg, nil
}

// Names lists the supported algorithm names in sorted order
func Names() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hasher streams file contents through an Algorithm in fixed-size chunks
type Hasher struct {
	alg       *Algorithm
	chunkSize int
}

// NewHasher creates a Hasher. A non-positive chunkSize selects DefaultChunkSize.
func NewHasher(alg *Algorithm, chunkSize int) *Hasher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Hasher{
		alg:       alg,
		chunkSize: chunkSize,
	}
}

// Algorithm returns the digest algorithm in use
func (h *Hasher) Algorithm() *Algorithm {
	return h.alg
}

// File calculates the hex digest of the file at filePath
func (h *Hasher) File(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", apperr.NewIO("open "+filePath, err)
	}
	defer file.Close()

	sum, err := h.Sum(file)
	if err != nil {
		return "", apperr.NewIO("hash "+filePath, err)
	}
	return sum, nil
}

// Sum calculates the hex digest of everything read from r
func (h *Hasher) Sum(r io.Reader) (string, error) {
	digest := h.alg.New()
	buffer := make([]byte, h.chunkSize)

	for {
		n, err := r.Read(buffer)
		if n > 0 {
			if _, err := digest.Write(buffer[:n]); err != nil {
				return "", fmt.Errorf("write to hash: %w", err)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

// ValidDigest reports whether s looks like a hex digest produced by alg
func ValidDigest(s string, alg *Algorithm) bool {
	if len(s) != alg.HexLen() {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
