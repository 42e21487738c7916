package core

import "testing"

func TestParseVersion(t *testing.T) {
	t.Parallel()
	v, err := ParseVersion("1.42")
	if err != nil {
		t.Fatalf("ParseVersion: %v", err)
	}
	if v != (Version{1, 42}) {
		t.Fatalf("version = %#v", v)
	}
	if v.String() != "1.42" {
		t.Fatalf("String() = %q", v.String())
	}

	for _, bad := range []string{"", "1", "1.", "1.x", "300.0", "1.256"} {
		if _, err := ParseVersion(bad); err == nil {
			t.Fatalf("ParseVersion(%q) accepted", bad)
		}
	}
}

func TestVersionCompare(t *testing.T) {
	t.Parallel()
	a, b := Version{1, 5}, Version{2, 0}
	if a.Compare(b) >= 0 || b.Compare(a) <= 0 {
		t.Fatalf("major ordering broken")
	}
	if (Version{1, 5}).Compare(Version{1, 5}) != 0 {
		t.Fatalf("equal versions not equal")
	}
	if (Version{1, 9}).Compare(Version{1, 5}) <= 0 {
		t.Fatalf("minor ordering broken")
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := Config{}.withDefaults()
	def := DefaultConfig()
	if cfg.MinVersion != def.MinVersion || cfg.MaxVersion != def.MaxVersion {
		t.Fatalf("version window = %v..%v", cfg.MinVersion, cfg.MaxVersion)
	}
	if cfg.IdleTimeout != def.IdleTimeout || cfg.MaxStampBytes != def.MaxStampBytes {
		t.Fatalf("limits not defaulted: %#v", cfg)
	}

	// Explicit values survive.
	custom := Config{MinVersion: Version{2, 0}, MaxVersion: Version{2, 1}}.withDefaults()
	if custom.MinVersion != (Version{2, 0}) {
		t.Fatalf("explicit window overwritten: %#v", custom)
	}
}

func TestNameValidation(t *testing.T) {
	t.Parallel()
	for _, ok := range []string{"alice", "room_1", "A-B", "0"} {
		if !validNameBytes([]byte(ok)) {
			t.Fatalf("%q rejected", ok)
		}
	}
	for _, bad := range []string{"", "a b", "tab\there", "ünïcode", "semi;"} {
		if validNameBytes([]byte(bad)) {
			t.Fatalf("%q accepted", bad)
		}
	}
}
