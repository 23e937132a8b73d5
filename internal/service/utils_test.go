package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQuestion(t *testing.T) {
	assert.Equal(t, "qabul qachon boshlanadi", normalizeQuestion("  Qabul   qachon\tboshlanadi  "))
	assert.Equal(t, normalizeQuestion("СКОЛЬКО стоит контракт?"), normalizeQuestion("сколько стоит контракт?"))
	assert.Equal(t, "", normalizeQuestion("   "))
}

func TestFingerprint(t *testing.T) {
	t.Run("normalization variants collide", func(t *testing.T) {
		a := Fingerprint("ru", "Сколько стоит   контракт?")
		b := Fingerprint("ru", "сколько стоит контракт?")
		assert.Equal(t, a, b)
	})

	t.Run("language separates", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint("ru", "test"), Fingerprint("en", "test"))
	})

	t.Run("different questions differ", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint("en", "how much"), Fingerprint("en", "how many"))
	})
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "ru", detectLanguage("Сколько стоит обучение в университете?"))
	assert.Equal(t, "en", detectLanguage("How much does tuition cost at the university this year?"))
	assert.Equal(t, "uz", detectLanguage("Universitetga qabul qachon boshlanadi?"))
}

func TestResolveLanguage(t *testing.T) {
	assert.Equal(t, "en", resolveLanguage("en", "нет разницы"))
	assert.Equal(t, "ru", resolveLanguage("", "Сколько стоит обучение в университете?"))
	assert.Equal(t, "uz", resolveLanguage("de", "Universitetga qabul qachon boshlanadi?"))
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "hello", sanitizeUTF8("hello"))
	assert.Equal(t, "ab", sanitizeUTF8("a\xffb"))
}
