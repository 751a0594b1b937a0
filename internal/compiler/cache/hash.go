// Package cache stores built bundles keyed by a content hash of their
// inputs and tracks which source files a bundle depends on.
package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/conduit-lang/neuron/internal/compiler/walker"
)

// FileHasher computes content hashes for cache keys
type FileHasher struct{}

// NewFileHasher creates a new file hasher
func NewFileHasher() *FileHasher {
	return &FileHasher{}
}

// HashBuild computes the cache key of one build: the package metadata and
// every walked node with its code, flags and edges. Nodes and edges are
// hashed in walker order; both orders show in the output.
func (fh *FileHasher) HashBuild(pkgData []byte, nodes []*walker.Node) string {
	hasher := sha256.New()
	write := func(parts ...string) {
		for _, p := range parts {
			hasher.Write([]byte(p))
			hasher.Write([]byte{0})
		}
	}

	hasher.Write(pkgData)
	write("")

	for _, n := range nodes {
		write(n.Path, flag(n.Entry), flag(n.Foreign), n.Code)
		for _, d := range n.Dependencies {
			write(d.Kind.String(), d.Specifier, d.Target)
		}
		write("")
	}

	return hex.EncodeToString(hasher.Sum(nil))
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
