// Package archive writes whole-map snapshots as a single zstd-compressed
// file: a JSON meta line followed by framed tile blocks in the tile text
// wire format. Reading an archive back yields every tile blob byte-for-byte
// as it was exported.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Meta describes an archived map.
type Meta struct {
	Version   int     `json:"version"`
	CreatedAt string  `json:"created_at"`
	Tiles     int     `json:"tiles"`
	TileSize  float64 `json:"tile_size"`
}

const metaVersion = 1

// Write stores every tile blob at path. Blobs must be in the tile wire
// format (newline-terminated lines); tiles are framed as
// "tile <id> <lineCount>" headers so the reader needs no end-of-block marker.
func Write(path string, tileSize float64, tiles map[uint64]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	meta := Meta{
		Version:   metaVersion,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Tiles:     len(tiles),
		TileSize:  tileSize,
	}
	mb, _ := json.Marshal(meta)
	if _, err := bw.Write(mb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	ids := make([]uint64, 0, len(tiles))
	for id := range tiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		data := tiles[id]
		if _, err := fmt.Fprintf(bw, "tile %d %d\n", id, countLines(data)); err != nil {
			return err
		}
		if _, err := bw.WriteString(data); err != nil {
			return err
		}
		if !strings.HasSuffix(data, "\n") {
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return nil
}

// Read loads an archive written by Write.
func Read(path string) (Meta, map[uint64]string, error) {
	var meta Meta
	f, err := os.Open(path)
	if err != nil {
		return meta, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return meta, nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	header, err := br.ReadString('\n')
	if err != nil {
		return meta, nil, fmt.Errorf("archive header: %w", err)
	}
	if err := json.Unmarshal([]byte(header), &meta); err != nil {
		return meta, nil, fmt.Errorf("archive header: %w", err)
	}

	tiles := make(map[uint64]string, meta.Tiles)
	for {
		frame, err := br.ReadString('\n')
		if frame == "" && err != nil {
			break // EOF
		}
		var id uint64
		var lines int
		if _, serr := fmt.Sscanf(strings.TrimSpace(frame), "tile %d %d", &id, &lines); serr != nil {
			return meta, tiles, fmt.Errorf("tile frame %q: %w", strings.TrimSpace(frame), serr)
		}
		var b strings.Builder
		for i := 0; i < lines; i++ {
			line, lerr := br.ReadString('\n')
			b.WriteString(line)
			if lerr != nil {
				return meta, tiles, fmt.Errorf("tile %d: truncated block: %w", id, lerr)
			}
		}
		tiles[id] = b.String()
		if err != nil {
			break
		}
	}
	return meta, tiles, nil
}

func countLines(s string) int {
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") && s != "" {
		n++
	}
	return n
}
