package main

import (
	"bytes"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, c *Config, args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp(c)
	app.Writer = &out
	app.ErrWriter = ioutil.Discard
	err := app.Run(append([]string{appName}, args...))
	return out.String(), err
}

func TestCommands(t *testing.T) {
	tmp, err := ioutil.TempDir("", "TestFatfs-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmp)
	image := filepath.Join(tmp, "disk.fs")
	host := filepath.Join(tmp, "hello.txt")
	require.NoError(t, ioutil.WriteFile(host, []byte("hello, world\n"), 0644))

	c := &Config{Image: image, Format: "text"}
	_, err = run(t, c, "mkfs", image, "20")
	require.NoError(t, err)

	out, err := run(t, c, "put", host)
	require.NoError(t, err)
	assert.Equal(t, "Wrote file 'hello.txt' (13/13 bytes)\n", out)

	out, err = run(t, c, "ls")
	require.NoError(t, err)
	assert.Equal(t, "FS Ls:\nfile: hello.txt, size: 13, data_blk: 1\n", out)

	out, err = run(t, c, "cat", "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello, world\n", out)

	out, err = run(t, c, "chain", "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "Allocated blocks for hello.txt:\n1\n", out)

	out, err = run(t, c, "dump", "hello.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "data block 1:\n00000000  68 65 6c 6c 6f")

	out, err = run(t, c, "info", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "data_blk_count: 20\n")
	assert.Contains(t, out, "fat_free: 18\n")

	_, err = run(t, c, "rm", "hello.txt")
	require.NoError(t, err)
	_, err = run(t, c, "cat", "hello.txt")
	assert.Error(t, err)

	_, err = run(t, c, "put", host, "copy")
	require.NoError(t, err)
	_, err = run(t, c, "wipe")
	require.NoError(t, err)
	out, err = run(t, c, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "fat_free_ratio=19/20\n")
	assert.Contains(t, out, "rdir_free_ratio=128/128\n")
}

func TestNoImage(t *testing.T) {
	_, err := run(t, &Config{Format: "text"}, "ls")
	assert.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("write failed")
}

func TestOutputErrors(t *testing.T) {
	tmp, err := ioutil.TempDir("", "TestFatfs-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmp)
	image := filepath.Join(tmp, "disk.fs")
	host := filepath.Join(tmp, "a.txt")
	require.NoError(t, ioutil.WriteFile(host, []byte("abc"), 0644))

	c := &Config{Image: image, Format: "text"}
	_, err = run(t, c, "mkfs", image, "10")
	require.NoError(t, err)

	app := newApp(c)
	app.Writer = failingWriter{}
	app.ErrWriter = ioutil.Discard
	assert.Error(t, app.Run([]string{appName, "put", host}))
	assert.Error(t, app.Run([]string{appName, "cat", "a.txt"}))

	// the descriptors were closed, so the volume still unmounts and the
	// file is intact
	out, err := run(t, c, "cat", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", out)
}
