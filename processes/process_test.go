package processes

import (
	"io/ioutil"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRotateLog(t *testing.T) {
	dir := t.TempDir()
	name := path.Join(dir, "test.log")
	ioutil.WriteFile(name, []byte("current"), 0644)
	ioutil.WriteFile(name+".1", []byte("older"), 0644)

	rotateLog(name)

	data, err := ioutil.ReadFile(name + ".1")
	assert.NoError(t, err)
	assert.Equal(t, "current", string(data))
	data, err = ioutil.ReadFile(name + ".2")
	assert.NoError(t, err)
	assert.Equal(t, "older", string(data))
	// the live log is truncated in place, not renamed
	info, err := os.Stat(name)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestRotateLogMissing(t *testing.T) {
	dir := t.TempDir()
	rotateLog(path.Join(dir, "absent.log"))
	files, _ := ioutil.ReadDir(dir)
	assert.Empty(t, files)
}
