package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdSetup(t *testing.T) {
	rootCmd := newRootCmd()

	if rootCmd.Use != "safops" {
		t.Errorf("expected command Use %q, got %q", "safops", rootCmd.Use)
	}

	want := map[string]bool{"version": false, "ls": false, "size": false, "delete": false, "copy": false, "move": false, "rename": false, "mkdir": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s subcommand not found", name)
		}
	}
}

type layout struct {
	internal string
	sd       string
	otg      string
	config   string
}

func newLayout(t *testing.T) layout {
	t.Helper()
	t.Setenv("SAFOPS_CONFIG_PATH", "")
	t.Setenv("SAFOPS_LOG_LEVEL", "error")

	root := t.TempDir()
	l := layout{
		internal: filepath.Join(root, "internal"),
		sd:       filepath.Join(root, "1234-5678"),
		otg:      filepath.Join(root, "otg"),
		config:   filepath.Join(root, "safops.yaml"),
	}
	write := func(p, content string) {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	write(filepath.Join(l.internal, "Download", "a.txt"), "aaaa")
	write(filepath.Join(l.internal, "Download", "big.bin"), "0123456789")
	write(filepath.Join(l.sd, "DCIM", "b.txt"), "hello")
	write(filepath.Join(l.otg, "Music", "x.mp3"), "mp3!")
	write(filepath.Join(l.otg, "Music", ".cover.jpg"), "0123456789")
	return l
}

func (l layout) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--internal", l.internal, "--sd", l.sd, "--otg", l.otg}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCmd(t *testing.T) {
	l := newLayout(t)
	out, _, err := l.run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "safops version dev")
}

func TestLsSortsAndRemembersOrder(t *testing.T) {
	l := newLayout(t)
	dir := filepath.Join(l.internal, "Download")

	out, _, err := l.run(t, "", "--config", l.config, "ls", dir, "--sort", "size", "--desc")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "big.bin"))
	assert.True(t, strings.HasSuffix(lines[1], "a.txt"))

	out, _, err = l.run(t, "", "--config", l.config, "ls", dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "-\t10 B"))
}

func TestCopyToSDAsksOnce(t *testing.T) {
	l := newLayout(t)
	src := filepath.Join(l.internal, "Download", "a.txt")

	out, errOut, err := l.run(t, "y\n", "copy", src, filepath.Join(l.sd, "DCIM"))
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(errOut, "Allow access to sd_card storage"))
	assert.Contains(t, errOut, "Files copied successfully")
	assert.Contains(t, out, "all: 1 of 1")
	data, err := os.ReadFile(filepath.Join(l.sd, "DCIM", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "aaaa", string(data))
	assert.FileExists(t, src)
}

func TestCopyToSDDeclined(t *testing.T) {
	l := newLayout(t)
	src := filepath.Join(l.internal, "Download", "a.txt")

	_, _, err := l.run(t, "n\n", "copy", src, filepath.Join(l.sd, "DCIM"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(l.sd, "DCIM", "a.txt"))
}

func TestMoveFromSD(t *testing.T) {
	l := newLayout(t)
	src := filepath.Join(l.sd, "DCIM", "b.txt")

	_, _, err := l.run(t, "", "-y", "move", src, filepath.Join(l.internal, "Download"))
	require.NoError(t, err)

	assert.NoFileExists(t, src)
	assert.FileExists(t, filepath.Join(l.internal, "Download", "b.txt"))
}

func TestGrantIsRemembered(t *testing.T) {
	l := newLayout(t)

	_, _, err := l.run(t, "y\n", "--config", l.config, "rename", filepath.Join(l.sd, "DCIM", "b.txt"), "c.txt")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(l.sd, "DCIM", "c.txt"))

	_, errOut, err := l.run(t, "", "--config", l.config, "delete", filepath.Join(l.sd, "DCIM", "c.txt"))
	require.NoError(t, err)
	assert.NotContains(t, errOut, "Allow access")
	assert.NoFileExists(t, filepath.Join(l.sd, "DCIM", "c.txt"))
}

func TestDeleteDirectoryNeedsRecursive(t *testing.T) {
	l := newLayout(t)
	dir := filepath.Join(l.internal, "Download")

	_, _, err := l.run(t, "", "delete", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use -r")
	assert.DirExists(t, dir)

	out, _, err := l.run(t, "", "delete", "-r", dir, filepath.Join(l.internal, "missing"))
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 2 of 2")
	assert.NoDirExists(t, dir)
}

func TestSizeOnOTG(t *testing.T) {
	l := newLayout(t)

	out, _, err := l.run(t, "", "-y", "size", "--bytes", "otg:/Music")
	require.NoError(t, err)
	assert.Equal(t, "4\totg:/Music", strings.TrimSpace(out))

	out, _, err = l.run(t, "", "-y", "size", "--bytes", "--hidden", "otg:/Music")
	require.NoError(t, err)
	assert.Equal(t, "14\totg:/Music", strings.TrimSpace(out))
}

func TestMkdirOnSD(t *testing.T) {
	l := newLayout(t)
	dir := filepath.Join(l.sd, "Backup")

	_, _, err := l.run(t, "", "-y", "mkdir", dir)
	require.NoError(t, err)
	assert.DirExists(t, dir)
}

func TestDeleteRefusesStorageRoot(t *testing.T) {
	l := newLayout(t)

	_, _, err := l.run(t, "", "-y", "delete", "-r", l.sd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to delete SD card")
	assert.DirExists(t, l.sd)
}
