package provisioner

import (
	"encoding/json"
	"testing"

	"github.com/mitchellh/copystructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingUnsetIsDistinctFromNil(t *testing.T) {
	var unset Setting
	assert.False(t, unset.IsSet())
	assert.Equal(t, Nil(), unset.Value())

	var explicit Setting
	explicit.Set(Nil())
	assert.True(t, explicit.IsSet())
	assert.Equal(t, Nil(), explicit.Value())

	assert.Equal(t, "<unset>", unset.String())
	assert.Equal(t, "nil", explicit.String())
}

func TestSettingDefault(t *testing.T) {
	var s Setting
	assert.True(t, s.Default(Bool(true)))
	assert.Equal(t, Bool(true), s.Value())

	assert.False(t, s.Default(Bool(false)))
	assert.Equal(t, Bool(true), s.Value())

	falsy := NewSetting(Bool(false))
	assert.False(t, falsy.Default(Bool(true)))
	assert.Equal(t, Bool(false), falsy.Value())

	empty := NewSetting(String(""))
	assert.False(t, empty.Default(String("x")))
	assert.Equal(t, String(""), empty.Value())
}

func TestSettingOrAndUnset(t *testing.T) {
	s := NewSetting(String("a"))
	assert.Equal(t, String("a"), s.Or(String("b")))

	s.Unset()
	assert.False(t, s.IsSet())
	assert.Equal(t, String("b"), s.Or(String("b")))
}

func TestSettingSetAnyRejectsUnsupported(t *testing.T) {
	s := NewSetting(String("keep"))
	require.Error(t, s.SetAny(42))
	assert.Equal(t, String("keep"), s.Value())
}

func TestNilSettingPointer(t *testing.T) {
	var s *Setting
	assert.False(t, s.IsSet())
	assert.Equal(t, Nil(), s.Value())
	assert.False(t, s.Default(Bool(true)))
	s.Set(Bool(true))
	s.Unset()
	assert.Equal(t, "<nil>", s.String())
}

func TestSettingJSON(t *testing.T) {
	var s Setting
	require.NoError(t, json.Unmarshal([]byte(`null`), &s))
	assert.True(t, s.IsSet())
	assert.Equal(t, Nil(), s.Value())

	data, err := json.Marshal(&Setting{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestSettingCopyKeepsState(t *testing.T) {
	b := New()
	require.NoError(t, b.Set("install", false))

	cp, err := copystructure.Copy(b)
	require.NoError(t, err)

	clone := cp.(*Base)
	assert.True(t, clone.Install.IsSet())
	assert.Equal(t, Bool(false), clone.Install.Value())
	assert.False(t, clone.Version.IsSet())

	clone.Install.Set(Bool(true))
	assert.Equal(t, Bool(false), b.Install.Value())
}
