package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/arthur-debert/safops/pkg/safops/filesystem"
)

// Known mount points of removable cards on devices that do not advertise them.
var physicalPaths = []string{
	"/storage/sdcard0", "/storage/sdcard1",
	"/storage/extsdcard",
	"/storage/sdcard0/external_sdcard",
	"/mnt/extsdcard", "/mnt/sdcard/external_sd",
	"/mnt/external_sd", "/mnt/media_rw/sdcard1",
	"/removable/microsd",
	"/mnt/emmc", "/storage/external_SD",
	"/storage/ext_sd",
	"/storage/removable/sdcard1",
	"/data/sdext", "/data/sdext2", "/data/sdext3", "/data/sdext4", "/sdcard1",
	"/sdcard2",
	"/storage/microsd",
}

// Env reads environment variables. os.Getenv satisfies it.
type Env func(key string) string

// CandidatesFromEnv lists storage directories advertised by the environment:
// EXTERNAL_STORAGE, EMULATED_STORAGE_TARGET (with the numeric user id of
// internalPath appended) and the list-separated SECONDARY_STORAGE. When none of
// the primary variables are set the known physical mount points are returned.
func CandidatesFromEnv(env Env, internalPath string) []string {
	if env == nil {
		env = os.Getenv
	}
	seen := make(map[string]struct{})
	add := func(p string) {
		if p != "" {
			seen[p] = struct{}{}
		}
	}

	external := env("EXTERNAL_STORAGE")
	emulated := env("EMULATED_STORAGE_TARGET")
	switch {
	case emulated != "":
		last := filepath.Base(strings.TrimRight(internalPath, "/"))
		if _, err := strconv.Atoi(last); err == nil {
			add(emulated + "/" + last)
		} else {
			add(emulated)
		}
	case external != "":
		add(external)
	default:
		for _, p := range physicalPaths {
			add(p)
		}
	}

	for _, p := range filepath.SplitList(env("SECONDARY_STORAGE")) {
		add(p)
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SDCardFromCandidates returns the first existing directory among candidates that
// is not the internal storage root, or "" when there is none.
func SDCardFromCandidates(fsys filesystem.ReadFS, candidates []string, internalPath string) string {
	internal := strings.TrimRight(internalPath, "/")
	for _, c := range candidates {
		trimmed := strings.TrimRight(c, "/")
		if trimmed == "" || trimmed == internal {
			continue
		}
		if fsys != nil && !filesystem.IsDir(fsys, trimmed) {
			continue
		}
		return trimmed
	}
	return ""
}
