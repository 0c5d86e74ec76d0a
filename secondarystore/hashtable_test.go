package secondarystore

import "testing"

func TestHashTableFindOrCreateAndCAS(t *testing.T) {
	ht := NewHashTable(16)
	hash := uint64(0x1234) << 0 // arbitrary

	slot, snap, err := ht.FindOrCreateTag(hash)
	if err != nil {
		t.Fatalf("FindOrCreateTag: %v", err)
	}
	if addr, ok := EntryAddress(snap); ok || addr != InvalidAddress {
		t.Fatalf("expected fresh claim to report empty chain, got addr=%d ok=%v", addr, ok)
	}

	newEntry := NewEntry(hash, 42)
	actual, swapped := ht.CAS(slot, snap, newEntry)
	if !swapped {
		t.Fatalf("expected CAS to succeed on fresh claim")
	}
	if addr, ok := EntryAddress(actual); !ok || addr != 42 {
		t.Fatalf("expected address 42, got %d ok=%v", addr, ok)
	}

	addr, found := ht.FindTag(hash)
	if !found || addr != 42 {
		t.Fatalf("FindTag = (%d,%v), want (42,true)", addr, found)
	}
}

func TestHashTableFindTagAbsent(t *testing.T) {
	ht := NewHashTable(8)
	if _, found := ht.FindTag(0xabc); found {
		t.Fatalf("expected not found on empty table")
	}
}

func mixHash(i uint64) uint64 { return (i + 1) * 0x9E3779B97F4A7C15 }

func TestHashTableDistinctHashesGetDistinctTags(t *testing.T) {
	ht := NewHashTable(1024)
	for i := uint64(0); i < 50; i++ {
		hash := mixHash(i)
		slot, snap, err := ht.FindOrCreateTag(hash)
		if err != nil {
			t.Fatalf("FindOrCreateTag(%d): %v", i, err)
		}
		entry := NewEntry(hash, int64(i))
		if _, swapped := ht.CAS(slot, snap, entry); !swapped {
			t.Fatalf("CAS(%d) failed unexpectedly", i)
		}
	}
	for i := uint64(0); i < 50; i++ {
		hash := mixHash(i)
		addr, found := ht.FindTag(hash)
		if !found || addr != int64(i) {
			t.Fatalf("FindTag(%d) = (%d,%v), want (%d,true)", i, addr, found, i)
		}
	}
}
