package world

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ferrumgo/server/internal/component"
	"gopkg.in/yaml.v3"
)

// DefaultDimension is assigned to imported chunks that do not name one.
const DefaultDimension = "overworld"

// HeightmapLongs is the packed length of a 256-entry, 9-bit heightmap.
const HeightmapLongs = 37

// Region is one *.yaml region manifest in the import directory.
type Region struct {
	Name   string      `yaml:"region"`
	Chunks []ChunkData `yaml:"chunks"`
}

// ChunkData is the raw, unvalidated form of a chunk column.
type ChunkData struct {
	X         int32         `yaml:"x"`
	Z         int32         `yaml:"z"`
	Dimension string        `yaml:"dimension"`
	Heightmap []int64       `yaml:"heightmap"`
	Sections  []SectionData `yaml:"sections"`
}

type SectionData struct {
	Y       int8     `yaml:"y"`
	Palette []string `yaml:"palette"`
	States  []int64  `yaml:"states"`
}

// LoadRegion reads and parses a single region manifest.
func LoadRegion(path string) (*Region, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region: %w", err)
	}
	var r Region
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parse region %s: %w", filepath.Base(path), err)
	}
	if r.Name == "" {
		r.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &r, nil
}

// regionFiles lists the *.yaml manifests of dir in name order.
func regionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read import dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ProcessChunk validates raw chunk data and converts it into the component
// stored in the world. Sections come out ordered bottom to top.
func ProcessChunk(d ChunkData) (component.ChunkColumn, error) {
	if n := len(d.Heightmap); n != 0 && n != HeightmapLongs {
		return component.ChunkColumn{}, fmt.Errorf("chunk %d,%d: heightmap has %d longs, want %d", d.X, d.Z, n, HeightmapLongs)
	}

	seen := make(map[int8]bool, len(d.Sections))
	sections := make([]component.ChunkSection, 0, len(d.Sections))
	for _, s := range d.Sections {
		if seen[s.Y] {
			return component.ChunkColumn{}, fmt.Errorf("chunk %d,%d: duplicate section y=%d", d.X, d.Z, s.Y)
		}
		seen[s.Y] = true
		if len(s.Palette) == 0 {
			return component.ChunkColumn{}, fmt.Errorf("chunk %d,%d: section y=%d has an empty palette", d.X, d.Z, s.Y)
		}
		// A single-entry palette encodes a uniform section without states.
		if len(s.Palette) > 1 && len(s.States) == 0 {
			return component.ChunkColumn{}, fmt.Errorf("chunk %d,%d: section y=%d has no block states", d.X, d.Z, s.Y)
		}
		sections = append(sections, component.ChunkSection{Y: s.Y, Palette: s.Palette, States: s.States})
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Y < sections[j].Y })

	dim := d.Dimension
	if dim == "" {
		dim = DefaultDimension
	}
	return component.ChunkColumn{
		X:         d.X,
		Z:         d.Z,
		Dimension: dim,
		Sections:  sections,
		Heightmap: d.Heightmap,
	}, nil
}
