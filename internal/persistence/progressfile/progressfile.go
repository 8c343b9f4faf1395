// Package progressfile persists one quest-progress document per world:
// player -> objective/quest -> value, zstd-compressed JSON on disk.
package progressfile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	SavedAt string `json:"saved_at"`
}

type DocumentV1 struct {
	Header  Header           `json:"header"`
	Players []PlayerRecordV1 `json:"players"`
}

type PlayerRecordV1 struct {
	PlayerID string            `json:"player_id"`
	Progress map[string]int    `json:"progress,omitempty"`
	Status   map[string]string `json:"status,omitempty"`
}

// Write replaces the document at path atomically: temp file in the same
// directory, then rename.
func Write(path string, doc DocumentV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	if err := json.NewEncoder(bw).Encode(&doc); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return fmt.Errorf("encode progress document: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func Read(path string) (DocumentV1, error) {
	var doc DocumentV1
	f, err := os.Open(path)
	if err != nil {
		return doc, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return doc, err
	}
	defer dec.Close()

	if err := json.NewDecoder(bufio.NewReaderSize(dec, 64*1024)).Decode(&doc); err != nil {
		return doc, fmt.Errorf("decode progress document: %w", err)
	}
	return doc, nil
}
