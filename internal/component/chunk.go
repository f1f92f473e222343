package component

import "fmt"

// ChunkColumn is one imported 16x16 column of the world. Pure data; the
// import pipeline fills it and the chunk repository persists it.
type ChunkColumn struct {
	X         int32
	Z         int32
	Dimension string
	Sections  []ChunkSection
	Heightmap []int64
}

// ChunkSection is one 16-block tall slice of a column.
type ChunkSection struct {
	Y       int8
	Palette []string
	States  []int64
}

// Key identifies a column across dimensions.
func (c ChunkColumn) Key() string {
	return fmt.Sprintf("%s:%d:%d", c.Dimension, c.X, c.Z)
}
