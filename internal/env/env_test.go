package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListSortedAndExpanded(t *testing.T) {
	t.Setenv("FRPDECK_TEST_HOME", "/home/x")
	e := New(map[string]string{
		"B_TOKEN":  "tok",
		"A_PROXY":  "http://proxy:3128",
		"C_DIR":    "${FRPDECK_TEST_HOME}/frp",
		"D_COMBO":  "$B_TOKEN-suffix",
		" ":        "ignored",
		"BAD=NAME": "ignored",
	})
	assert.Equal(t, []string{
		"A_PROXY=http://proxy:3128",
		"B_TOKEN=tok",
		"C_DIR=/home/x/frp",
		"D_COMBO=tok-suffix",
	}, e.List())
}

func TestSetUnset(t *testing.T) {
	e := New(nil)
	assert.Empty(t, e.List())
	e.Set("K", "v")
	assert.Equal(t, []string{"K=v"}, e.List())
	e.Unset("K")
	assert.Empty(t, e.List())

	var nilEnv *Env
	assert.Nil(t, nilEnv.List())
}
