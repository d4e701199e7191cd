package cf

import (
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

type testCf struct {
	BatchSize   int           `cf:"batch_size"`
	Scale       float64       `cf:"scale"`
	Enabled     bool          `cf:"enabled"`
	Name        string        `cf:"name"`
	Timeout     time.Duration `cf:"timeout"`
	Keys        []string      `cf:"keys"`
	hidden      int
}

func TestLoad(t *testing.T) {
	c := &testCf{BatchSize: 15, Timeout: 10 * time.Minute}
	d := make(map[string]interface{})
	d["batch_size"] = 20
	d["scale"] = 1.5
	d["enabled"] = true
	d["name"] = "accounts"
	err := Load(d, c)
	assert.NoError(t, err)
	assert.Equal(t, 20, c.BatchSize)
	assert.Equal(t, 1.5, c.Scale)
	assert.True(t, c.Enabled)
	assert.Equal(t, "accounts", c.Name)
	assert.Equal(t, 10*time.Minute, c.Timeout)
}

func TestLoadDurationString(t *testing.T) {
	c := &testCf{}
	err := Load(map[string]interface{}{"timeout": "30s"}, c)
	assert.NoError(t, err)
	assert.Equal(t, 30*time.Second, c.Timeout)
}

func TestLoadDurationMs(t *testing.T) {
	c := &testCf{}
	err := Load(map[string]interface{}{"timeout": 1500}, c)
	assert.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, c.Timeout)
}

func TestLoadStringSlice(t *testing.T) {
	c := &testCf{}
	err := Load(map[string]interface{}{"keys": []interface{}{"a", "b"}}, c)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.Keys)
}

func TestLoadTypeMismatch(t *testing.T) {
	c := &testCf{}
	err := Load(map[string]interface{}{"batch_size": "nope"}, c)
	assert.Error(t, err)
}

func TestLoadNotStruct(t *testing.T) {
	i := 0
	err := Load(map[string]interface{}{}, &i)
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	c := &testCf{BatchSize: 15, Name: "accounts"}
	out := Dump("profile", c)
	assert.Contains(t, out, "batch_size")
	assert.Contains(t, out, "accounts")
}
