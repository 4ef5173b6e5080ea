package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/somnolabs/oneiro/core"
)

// Key prefixes for different data types
const (
	dreamPrefix        = "dream"
	embeddingPrefix    = "embrec"
	themeMatchPrefix   = "thmtch"
	themePrefix        = "theme"
	fragmentPrefix     = "frarec"
	fragmentLinkPrefix = "fralnk"
	jobPrefix          = "jobrec"
)

// makeDreamKey generates a key for a dream by ID.
func makeDreamKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", dreamPrefix, id))
}

// makeEmbeddingKey generates a composite key for an embedding record.
// Format: prefix:dreamId:chunkIndex, both BigEndian so lexicographic
// iteration yields chunk order.
func makeEmbeddingKey(dreamId core.ID, chunkIndex int) []byte {
	prefix := embeddingPrefix + ":"
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(dreamId))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(chunkIndex))
	return buf
}

// makeEmbeddingScanPrefix generates the iteration prefix for a dream's
// embedding records.
func makeEmbeddingScanPrefix(dreamId core.ID) []byte {
	prefix := embeddingPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(dreamId))
	return buf
}

// makeThemeMatchKey generates a composite key for a theme match row.
// Format: prefix:dreamId:rank
func makeThemeMatchKey(dreamId core.ID, rank int) []byte {
	prefix := themeMatchPrefix + ":"
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(dreamId))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(rank))
	return buf
}

// makeThemeMatchScanPrefix generates the iteration prefix for a dream's
// theme matches.
func makeThemeMatchScanPrefix(dreamId core.ID) []byte {
	prefix := themeMatchPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(dreamId))
	return buf
}

// makeThemeKey generates a key for a catalog theme by code.
func makeThemeKey(code string) []byte {
	return []byte(themePrefix + ":" + code)
}

// makeFragmentKey generates a key for a fragment by ID.
func makeFragmentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", fragmentPrefix, id))
}

// makeFragmentLinkKey generates a composite key for a fragment-theme
// association. Format: prefix:themeCode:fragmentId
func makeFragmentLinkKey(themeCode string, fragmentId core.ID) []byte {
	prefix := fragmentLinkPrefix + ":" + themeCode + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(fragmentId))
	return buf
}

// makeFragmentLinkScanPrefix generates the iteration prefix for one theme
// code's associations.
func makeFragmentLinkScanPrefix(themeCode string) []byte {
	return []byte(fragmentLinkPrefix + ":" + themeCode + ":")
}

// makeJobKey generates a key for a job by its subject dream ID.
func makeJobKey(dreamId core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", jobPrefix, dreamId))
}
