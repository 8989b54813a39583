package ble

import "testing"

func TestRegistryStartsEmpty(t *testing.T) {
	reg := NewRegistry(testCharUUIDs)
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
	if _, ok := reg.Lookup(testCharUUIDs[0]); ok {
		t.Error("Lookup() found an entry before discovery")
	}
	if got := reg.Keys(); len(got) != 5 || got[2] != testCharUUIDs[2] {
		t.Errorf("Keys() = %v, want configured order", got)
	}
}

func TestRegistryAddOnlyKnown(t *testing.T) {
	reg := NewRegistry(testCharUUIDs)

	if !reg.Add(&mockCharacteristic{uuid: testCharUUIDs[1]}) {
		t.Error("Add() rejected a known UUID")
	}
	if reg.Add(&mockCharacteristic{uuid: "12345678-1234-5678-1234-56789abcdeff"}) {
		t.Error("Add() accepted an unknown UUID")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestRegistryLookupIgnoresCase(t *testing.T) {
	reg := NewRegistry(testCharUUIDs)
	reg.Add(&mockCharacteristic{uuid: "12345678-1234-5678-1234-56789ABCDEF3"})

	if _, ok := reg.Lookup(testCharUUIDs[2]); !ok {
		t.Error("Lookup() should match regardless of case")
	}
}

func TestRegistryShortUUIDs(t *testing.T) {
	reg := NewRegistry([]string{"FFF1", "FFF2"})
	reg.Add(&mockCharacteristic{uuid: "0000fff2-0000-1000-8000-00805f9b34fb"})

	if _, ok := reg.Lookup("fff2"); !ok {
		t.Error("Lookup() should match a 16-bit UUID against its 128-bit form")
	}
	if got := reg.Missing(); len(got) != 1 {
		t.Errorf("Missing() = %v, want one entry", got)
	}
}

func TestRegistryDropsDuplicateKeys(t *testing.T) {
	reg := NewRegistry([]string{testCharUUIDs[0], testCharUUIDs[0], testCharUUIDs[1]})
	if got := len(reg.Keys()); got != 2 {
		t.Errorf("len(Keys()) = %d, want 2", got)
	}
}

func TestNilRegistry(t *testing.T) {
	var reg *Registry
	if reg.Len() != 0 {
		t.Error("nil registry Len() should be 0")
	}
	if _, ok := reg.Lookup(testCharUUIDs[0]); ok {
		t.Error("nil registry Lookup() should miss")
	}
	if missing := reg.Missing(); missing != nil {
		t.Errorf("nil registry Missing() = %v, want nil", missing)
	}
	if keys := reg.Keys(); keys != nil {
		t.Errorf("nil registry Keys() = %v, want nil", keys)
	}
	if reg.Known(testCharUUIDs[0]) {
		t.Error("nil registry Known() should be false")
	}
}

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"12345678-1234-5678-1234-56789ABCDEF0", "12345678-1234-5678-1234-56789abcdef0", false},
		{" 12345678-1234-5678-1234-56789abcdef0 ", "12345678-1234-5678-1234-56789abcdef0", false},
		{"180F", "0000180f-0000-1000-8000-00805f9b34fb", false},
		{"not-a-uuid", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeUUID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeUUID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeUUID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
