package tiff

import (
	"fmt"
	"sync"
)

// maxTableBits is the widest source depth served by a lookup table. Wider
// samples are rescaled arithmetically.
const maxTableBits = 16

// BuildBitDepthTables returns, for each band, a table mapping every source
// value s in [0, 2^srcBits[b]) to round(s * maxOut / maxIn). Bands wider
// than 16 bits get a nil table and are rescaled with RescaleSample.
func BuildBitDepthTables(srcBits, dstBits []int) [][]int {
	tables := make([][]int, len(srcBits))
	for b, in := range srcBits {
		if in > maxTableBits {
			continue
		}
		maxIn := 1<<uint(in) - 1
		maxOut := 1<<uint(dstBits[b]) - 1
		table := make([]int, maxIn+1)
		for s := range table {
			table[s] = (s*maxOut + maxIn/2) / maxIn
		}
		tables[b] = table
	}
	return tables
}

// RescaleSample maps s from an inBits-wide range to an outBits-wide range
// with the same rounding as BuildBitDepthTables.
func RescaleSample(s uint32, inBits, outBits int) uint32 {
	maxIn := uint64(1)<<uint(inBits) - 1
	maxOut := uint64(1)<<uint(outBits) - 1
	return uint32((uint64(s)*maxOut + maxIn/2) / maxIn)
}

// bitDepthKey identifies a set of rescale tables. Two decodes with equal
// keys share tables.
type bitDepthKey struct {
	planar   bool
	destBits string
	srcBands string
	srcBits  string
	dstBands string
}

func newBitDepthKey(planar bool, destBits, srcBands, srcBits, dstBands []int) bitDepthKey {
	return bitDepthKey{
		planar:   planar,
		destBits: fmt.Sprint(destBits),
		srcBands: fmt.Sprint(srcBands),
		srcBits:  fmt.Sprint(srcBits),
		dstBands: fmt.Sprint(dstBands),
	}
}

// bitDepthCache remembers the most recent rescale tables.
type bitDepthCache struct {
	mu     sync.Mutex
	key    bitDepthKey
	tables [][]int
	valid  bool
}

// lookup returns the tables for key, building them with build on a miss.
func (c *bitDepthCache) lookup(key bitDepthKey, build func() [][]int) [][]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.key == key {
		return c.tables
	}
	c.key = key
	c.tables = build()
	c.valid = true
	return c.tables
}
