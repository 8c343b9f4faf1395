package progressfile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json.zst")
	doc := DocumentV1{
		Header: Header{Version: 1, WorldID: "overworld", SavedAt: "2026-01-02T03:04:05Z"},
		Players: []PlayerRecordV1{
			{
				PlayerID: "P1",
				Progress: map[string]int{"Q_ORE:0": 5, "Q_KILL:0": 2},
				Status:   map[string]string{"Q_ORE": "READY"},
			},
			{
				PlayerID: "P2",
				Progress: map[string]int{"Q_ORE:0": 1},
				Status:   map[string]string{"Q_KILL": "REDEEMED"},
			},
		},
	}
	if err := Write(path, doc); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(doc, got) {
		t.Fatalf("round trip mismatch:\n  wrote %+v\n  read  %+v", doc, got)
	}
}

func TestWrite_LeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.json.zst")
	if err := Write(path, DocumentV1{Header: Header{Version: 1, WorldID: "w"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file renamed away, stat err=%v", err)
	}
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.json.zst"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
