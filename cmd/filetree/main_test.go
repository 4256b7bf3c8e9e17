package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type cli struct {
	config string
	db     string
}

func newCLI(t *testing.T) cli {
	dir := t.TempDir()
	return cli{
		config: filepath.Join(dir, "config.json"),
		db:     filepath.Join(dir, "filetree.db"),
	}
}

func (c cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", c.config, "--db", c.db}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (c cli) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := c.run(t, args...)
	require.NoError(t, err)
	return out
}

// writeTree creates files under root; names ending in "/" are directories.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			require.NoError(t, os.MkdirAll(p, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestLs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"sub/":     "",
		"big.bin":  strings.Repeat("x", 1000),
		"note.txt": "hi",
	})

	out := newCLI(t).mustRun(t, "ls", root)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "d"))
	require.True(t, strings.HasSuffix(lines[0], "sub/"))
	require.Contains(t, lines[1], "1.0 kB")
	require.True(t, strings.HasSuffix(lines[1], "big.bin"))
	require.Contains(t, lines[2], "2 B")
}

func TestLs_NotADirectory(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"f.txt": "x"})

	_, err := newCLI(t).run(t, "ls", filepath.Join(root, "f.txt"))
	require.ErrorContains(t, err, "not a directory")
}

func TestOpen_SessionRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a/x.txt": "",
		"b/y.txt": "",
	})
	c := newCLI(t)
	name := filepath.Base(root)

	out := c.mustRun(t, "open", root, "--expand", "a")
	require.Equal(t, "▾ "+name+"\n  ▾ a\n      x.txt\n  ▸ b\n", out)

	out = c.mustRun(t, "state")
	require.Equal(t, "root: "+root+"\n"+root+"\n"+filepath.Join(root, "a")+"\n", out)

	// No argument reopens the recent folder as it was left
	out = c.mustRun(t, "open")
	require.Equal(t, "▾ "+name+"\n  ▾ a\n      x.txt\n  ▸ b\n", out)

	out = c.mustRun(t, "open", "--expand", filepath.Join(root, "b"))
	require.Contains(t, out, "  ▾ b\n      y.txt\n")
	require.Contains(t, out, "  ▾ a\n")
}

func TestOpen_CompactsUnlessDisabled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"only/deeper/z.txt": ""})
	name := filepath.Base(root)

	out := newCLI(t).mustRun(t, "open", root)
	require.Equal(t, "▾ "+name+"\n  ▾ only\n    ▾ deeper\n        z.txt\n", out)

	out = newCLI(t).mustRun(t, "--no-compact", "open", root)
	require.Equal(t, "▾ "+name+"\n  ▸ only\n", out)
}

func TestOpen_Errors(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"f.txt": ""})
	c := newCLI(t)

	_, err := c.run(t, "open", filepath.Join(root, "f.txt"))
	require.ErrorContains(t, err, "not a directory")

	_, err = c.run(t, "open")
	require.ErrorContains(t, err, "no recent folder")

	_, err = c.run(t, "open", root, "--expand", "missing")
	require.Error(t, err)
}

func TestRefresh_PicksUpNewEntries(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a/x.txt": "", "b/": ""})
	c := newCLI(t)

	_, err := c.run(t, "refresh")
	require.ErrorIs(t, err, errNoRecent)

	c.mustRun(t, "open", root, "--expand", "a")
	writeTree(t, root, map[string]string{"a/new.txt": ""})

	out := c.mustRun(t, "refresh")
	require.Contains(t, out, "  ▾ a\n      new.txt\n      x.txt\n")
}

func TestClose(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a/x.txt": "", "b/": ""})
	c := newCLI(t)

	require.Equal(t, "no folder open\n", c.mustRun(t, "close"))

	c.mustRun(t, "open", root, "--expand", "a")
	require.Equal(t, "closed "+root+"\n", c.mustRun(t, "close"))
	require.Contains(t, c.mustRun(t, "state"), filepath.Join(root, "a"))

	require.Equal(t, "closed "+root+"\n", c.mustRun(t, "close", "--forget"))
	_, err := c.run(t, "state")
	require.ErrorIs(t, err, errNoRecent)
}

func TestConfig(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun(t, "config", "init")
	require.Equal(t, "wrote "+c.config+"\n", out)

	out = c.mustRun(t, "config", "init")
	require.Contains(t, out, "backed up "+c.config)

	out = c.mustRun(t, "--no-compact", "config", "show")
	require.Contains(t, out, `"compactChains": false`)
	require.Contains(t, out, `"path": "`+c.db+`"`)
}

func TestConfigSet_ChangesLaterSessions(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"only/deeper/z.txt": ""})
	c := newCLI(t)
	name := filepath.Base(root)

	require.Equal(t, "tree.compactChains = false\n", c.mustRun(t, "config", "set", "tree.compactChains", "false"))
	require.Equal(t, "▾ "+name+"\n  ▸ only\n", c.mustRun(t, "open", root))

	c.mustRun(t, "config", "set", "tree.autoOpenLast", "false")
	_, err := c.run(t, "open")
	require.ErrorContains(t, err, "autoOpenLast is off")

	out := c.mustRun(t, "config", "show")
	require.Contains(t, out, `"compactChains": false`)
	require.Contains(t, out, `"autoOpenLast": false`)
}

func TestConfigSet_RejectsBadInput(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "config", "set", "tree.colour", "red")
	require.ErrorContains(t, err, "unknown key")

	_, err = c.run(t, "config", "set", "tree.showDotfiles", "maybe")
	require.Error(t, err)

	_, err = c.run(t, "config", "set", "tree.nameOrder", "random")
	require.ErrorContains(t, err, "unknown name order")

	require.Contains(t, c.mustRun(t, "config", "show"), `"nameOrder": "fold"`)
}
