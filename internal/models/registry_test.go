package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_AddIsUnique(t *testing.T) {
	r := Registry{}

	assert.True(t, r.Add("guild-1", "ABC"))
	assert.False(t, r.Add("guild-1", "ABC"))
	assert.True(t, r.Add("guild-2", "ABC"))

	assert.Equal(t, []string{"ABC"}, r.List("guild-1"))
	assert.Equal(t, []string{"guild-1", "guild-2"}, r.Communities())
}

func TestRegistry_RemoveDropsEmptyCommunity(t *testing.T) {
	r := Registry{"guild-1": {"ABC", "XYZ"}}

	assert.True(t, r.Remove("guild-1", "ABC"))
	assert.Equal(t, []string{"XYZ"}, r.List("guild-1"))

	assert.False(t, r.Remove("guild-1", "ABC"))
	assert.True(t, r.Remove("guild-1", "XYZ"))

	_, ok := r["guild-1"]
	assert.False(t, ok)
	assert.Equal(t, []string{}, r.List("guild-1"))
}

func TestRegistry_CloneIsDeep(t *testing.T) {
	r := Registry{"guild-1": {"ABC"}}
	c := r.Clone()
	c.Add("guild-1", "XYZ")
	c["guild-1"][0] = "MUT"

	assert.Equal(t, []string{"ABC"}, r["guild-1"])
}

func TestRegistry_Normalize(t *testing.T) {
	r := Registry{
		"guild-1": {"abc", " ABC ", "msft", ""},
		"guild-2": {"", "  "},
	}
	r.Normalize()

	assert.Equal(t, Registry{"guild-1": {"ABC", "MSFT"}}, r)
}
