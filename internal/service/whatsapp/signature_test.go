package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidSignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	good := Sign(body, "secret")

	assert.True(t, ValidSignature(body, good, "secret"))
	assert.False(t, ValidSignature(body, good, "other"))
	assert.False(t, ValidSignature([]byte(`{}`), good, "secret"))
	assert.False(t, ValidSignature(body, "", "secret"))
	assert.False(t, ValidSignature(body, "sha1=abcd", "secret"))
	assert.False(t, ValidSignature(body, "sha256=not-hex", "secret"))
}
