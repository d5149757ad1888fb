package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	valid := []string{
		"a@b.fr",
		"hello@shopx.fr",
		"contact+leads@example.co.uk",
		"first.last@example.com",
		"o'brien@example.ie",
	}
	for _, e := range valid {
		assert.True(t, IsValidEmail(e), "expected %q to be valid", e)
	}

	invalid := []string{
		"",
		"a@b.f",            // last label too short
		"a@b",              // no tld
		"no-at-sign.fr",    // missing @
		"two@@signs.fr",    // double @
		"dot..dot@mail.fr", // consecutive dots
		"dot@.mail.fr",     // dot adjacent to @
		"dot.@mail.fr",     // dot adjacent to @
		"white space@mail.fr",
		"a@.fr",
		"(paren)@mail.fr", // outside local-part class
	}
	for _, e := range invalid {
		assert.False(t, IsValidEmail(e), "expected %q to be invalid", e)
	}
}

func TestIsValidEmailLength(t *testing.T) {
	assert.False(t, IsValidEmail("a@b."))

	long := make([]byte, 250)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, IsValidEmail(string(long)+"@b.fr"))
}

func TestExtractEmail(t *testing.T) {
	assert.Equal(t, "contact@shopx.fr",
		ExtractEmail("Écrivez-nous à contact@shopx.fr ou passez en boutique."))

	// First syntactically valid match wins.
	assert.Equal(t, "b@mail.fr",
		ExtractEmail("broken@@mail.fr b@mail.fr c@mail.fr"))

	assert.Empty(t, ExtractEmail("no email here"))
	assert.Empty(t, ExtractEmail(""))
}
