package storage_test

import (
	"testing"
	"time"

	"github.com/arthur-debert/safops/pkg/safops/config"
	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/filesystem"
	"github.com/arthur-debert/safops/pkg/safops/storage"
)

var scoped = storage.Platform{ScopedRemovableAccess: true, DocumentTrees: true}

func newClassifier(t *testing.T, platform storage.Platform) (*storage.Classifier, *config.BaseConfig) {
	t.Helper()
	cfg := config.NewBaseConfig(config.NewMemoryStore())
	if err := cfg.SetInternalStoragePath("/storage/emulated/0"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.SetSDCardPath("/storage/1234-5678"); err != nil {
		t.Fatal(err)
	}
	return storage.NewClassifier(cfg, platform), cfg
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		sdCard   string
		platform storage.Platform
		want     core.StorageKind
	}{
		{"otg prefix", "otg:/DCIM/a.jpg", "/storage/1234-5678", scoped, core.KindOtg},
		{"otg wins without sd root", "otg:/a", "", storage.Platform{}, core.KindOtg},
		{"sd card path", "/storage/1234-5678/DCIM/a.jpg", "/storage/1234-5678", scoped, core.KindSdCard},
		{"sd card root itself", "/storage/1234-5678", "/storage/1234-5678", scoped, core.KindSdCard},
		{"sd root with trailing slash", "/storage/1234-5678/a", "/storage/1234-5678/", scoped, core.KindSdCard},
		{"sibling sharing prefix", "/storage/1234-56789/a", "/storage/1234-5678", scoped, core.KindInternal},
		{"sd card on legacy platform", "/storage/1234-5678/a", "/storage/1234-5678", storage.Platform{}, core.KindInternal},
		{"empty sd root", "/storage/1234-5678/a", "", scoped, core.KindInternal},
		{"internal", "/storage/emulated/0/a.txt", "/storage/1234-5678", scoped, core.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := storage.Classify(tt.path, tt.sdCard, tt.platform)
			if got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.path, got, tt.want)
			}
			if again := storage.Classify(tt.path, tt.sdCard, tt.platform); again != got {
				t.Errorf("Classify is not idempotent: %s then %s", got, again)
			}
		})
	}
}

func TestClassifier(t *testing.T) {
	c, cfg := newClassifier(t, scoped)

	t.Run("NeedsCapability", func(t *testing.T) {
		if !c.NeedsCapability("/storage/1234-5678/a") {
			t.Error("Expected SD path to need a capability")
		}
		if !c.NeedsCapability("otg:/a") {
			t.Error("Expected OTG path to need a capability")
		}
		if c.NeedsCapability("/storage/emulated/0/a") {
			t.Error("Expected internal path to be direct")
		}
	})

	t.Run("RelativePath", func(t *testing.T) {
		cases := map[string]string{
			"/storage/1234-5678/DCIM/a.jpg": "DCIM/a.jpg",
			"/storage/1234-5678":            "",
			"otg:/Music/x.mp3":              "Music/x.mp3",
			"/storage/emulated/0/Download/": "Download",
		}
		for in, want := range cases {
			if got := c.RelativePath(in); got != want {
				t.Errorf("RelativePath(%q) = %q, want %q", in, got, want)
			}
		}
	})

	t.Run("IsStorageRoot", func(t *testing.T) {
		for _, p := range []string{"/", "", "/storage/emulated/0/", "/storage/1234-5678"} {
			if !c.IsStorageRoot(p) {
				t.Errorf("Expected %q to be a storage root", p)
			}
		}
		if c.IsStorageRoot("/storage/1234-5678/DCIM") {
			t.Error("Expected a subfolder not to be a storage root")
		}
	})

	t.Run("Humanize", func(t *testing.T) {
		cases := map[string]string{
			"/storage/1234-5678/DCIM":   "SD card/DCIM",
			"/storage/emulated/0":       "Internal",
			"/storage/emulated/0/Music": "Internal/Music",
			"otg:/Photos":               "USB/Photos",
			"/system/etc":               "Root/system/etc",
		}
		for in, want := range cases {
			if got := c.Humanize(in); got != want {
				t.Errorf("Humanize(%q) = %q, want %q", in, got, want)
			}
		}
	})

	t.Run("roots are read on every call", func(t *testing.T) {
		if err := cfg.SetSDCardPath(""); err != nil {
			t.Fatal(err)
		}
		if got := c.Classify("/storage/1234-5678/a"); got != core.KindInternal {
			t.Errorf("Expected internal once the SD root is cleared, got %s", got)
		}
	})
}

func TestSDCardDetection(t *testing.T) {
	env := func(vals map[string]string) storage.Env {
		return func(k string) string { return vals[k] }
	}

	t.Run("emulated target with user id", func(t *testing.T) {
		got := storage.CandidatesFromEnv(env(map[string]string{
			"EMULATED_STORAGE_TARGET": "/storage/emulated",
			"SECONDARY_STORAGE":       "/storage/1234-5678:/storage/usb",
		}), "/storage/emulated/0")
		want := []string{"/storage/1234-5678", "/storage/emulated/0", "/storage/usb"}
		if len(got) != len(want) {
			t.Fatalf("Expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Expected %s at %d, got %s", want[i], i, got[i])
			}
		}
	})

	t.Run("falls back to physical paths", func(t *testing.T) {
		got := storage.CandidatesFromEnv(env(nil), "/storage/emulated/0")
		if len(got) < 10 {
			t.Errorf("Expected the known mount points, got %v", got)
		}
	})

	t.Run("first existing non-internal candidate", func(t *testing.T) {
		tfs := filesystem.NewTestFileSystem()
		tfs.WriteFile("/storage/emulated/0/a", []byte("a"), time.Now())
		tfs.WriteFile("/storage/usb/a", []byte("a"), time.Now())

		got := storage.SDCardFromCandidates(tfs, []string{"/storage/1234-5678", "/storage/emulated/0/", "/storage/usb/"}, "/storage/emulated/0")
		if got != "/storage/usb" {
			t.Errorf("Expected /storage/usb, got %q", got)
		}
		if got := storage.SDCardFromCandidates(tfs, []string{"/storage/emulated/0"}, "/storage/emulated/0"); got != "" {
			t.Errorf("Expected no SD card, got %q", got)
		}
	})
}
