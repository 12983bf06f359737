package record

import (
	"path/filepath"
	"testing"
)

func TestFingerprint_IgnoresControlNumber(t *testing.T) {
	a := Record{ControlNumber: "ZTS000000001", Title: "Same Content"}
	b := Record{ControlNumber: "ZTS000000002", Title: "Same Content"}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprints of records differing only by ControlNumber should match")
	}
}

func TestFingerprint_DiffersOnContent(t *testing.T) {
	a := Record{ControlNumber: "ZTS000000001", Title: "Title One"}
	b := Record{ControlNumber: "ZTS000000001", Title: "Title Two"}
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("fingerprints of records with different titles should differ")
	}
}

func TestLoadFingerprintSet_MissingFileIsEmpty(t *testing.T) {
	set, err := LoadFingerprintSet(filepath.Join(t.TempDir(), "previously_downloaded.hashes"))
	if err != nil {
		t.Fatalf("LoadFingerprintSet returned error for missing file: %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for a missing sidecar", set.Len())
	}
}

func TestFingerprintSet_CheckAndAddThenSaveRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "previously_downloaded.hashes")
	set, err := LoadFingerprintSet(path)
	if err != nil {
		t.Fatalf("LoadFingerprintSet returned error: %v", err)
	}

	fp := Fingerprint(Record{Title: "First"})
	if alreadySeen := set.CheckAndAdd(fp); alreadySeen {
		t.Fatal("new fingerprint incorrectly reported as already seen")
	}
	if alreadySeen := set.CheckAndAdd(fp); !alreadySeen {
		t.Fatal("repeated fingerprint should be reported as already seen")
	}

	if err := set.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	reloaded, err := LoadFingerprintSet(path)
	if err != nil {
		t.Fatalf("LoadFingerprintSet (reload) returned error: %v", err)
	}
	if reloaded.Len() != 1 {
		t.Fatalf("reloaded Len() = %d, want 1", reloaded.Len())
	}
	if alreadySeen := reloaded.CheckAndAdd(fp); !alreadySeen {
		t.Error("fingerprint saved in a prior run should be recognized after reload")
	}
}
