package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_CommonCodes(t *testing.T) {
	code, ok := Normalize("English")
	assert.True(t, ok)
	assert.Equal(t, "eng", code)
}

func TestNormalize_PortugueseVariantsDistinct(t *testing.T) {
	br, ok := Normalize("pt-BR")
	assert.True(t, ok)
	assert.Equal(t, BrazilianPortuguese, br)

	eu, ok := Normalize("pt-PT")
	assert.True(t, ok)
	assert.Equal(t, EuropeanPortuguese, eu)

	assert.NotEqual(t, br, eu)
}

func TestNormalize_UnknownDrops(t *testing.T) {
	_, ok := Normalize("klingon")
	assert.False(t, ok)
}

func TestNormalize_EmptyDrops(t *testing.T) {
	_, ok := Normalize("   ")
	assert.False(t, ok)
}

func TestNormalize_BCP47LocaleFallsBackToBaseLanguage(t *testing.T) {
	code, ok := Normalize("en-US")
	assert.True(t, ok)
	assert.Equal(t, "eng", code)

	code, ok = Normalize("zh-Hans-CN")
	assert.True(t, ok)
	assert.Equal(t, "chi", code)
}
