package gcpcred

import (
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_DirectJSON(t *testing.T) {
	d, fail := decode(Classify(`{"type":"service_account","project_id":"p1"}`))
	require.Nil(t, fail)
	assert.Equal(t, PathRawJSON, d.Path)
	fields := d.Value.(map[string]any)
	assert.Equal(t, "p1", fields["project_id"])
}

func TestDecode_URLEncoded(t *testing.T) {
	escaped := url.PathEscape(`{"type":"service_account","private_key":"a+b/c"}`)
	d, fail := decode(Classify(escaped))
	require.Nil(t, fail)
	assert.Equal(t, PathURLDecoded, d.Path)

	// PathUnescape must not turn '+' into a space; key material contains '+'.
	fields := d.Value.(map[string]any)
	assert.Equal(t, "a+b/c", fields["private_key"])
}

func TestDecode_Base64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"type":"service_account"}`))
	d, fail := decode(Classify(encoded))
	require.Nil(t, fail)
	assert.Equal(t, PathBase64Decoded, d.Path)
}

func TestDecode_Base64Unpadded(t *testing.T) {
	encoded := base64.RawStdEncoding.EncodeToString([]byte(`{"type":"service_account"}`))
	d, fail := decode(Classify(encoded))
	require.Nil(t, fail)
	assert.Equal(t, PathBase64Decoded, d.Path)
}

func TestDecode_JSONPrefixedGarbage_SkipsBase64(t *testing.T) {
	d, fail := decode(Classify(`{"type": truncated`))
	require.Nil(t, d)
	require.NotNil(t, fail)
	assert.Equal(t, KindInvalidJSON, fail.Kind)
	assert.Contains(t, fail.Transcript(), "base64-decode not attempted")
}

func TestDecode_PlainText(t *testing.T) {
	d, fail := decode(Classify("not json at all"))
	require.Nil(t, d)
	require.NotNil(t, fail)
	assert.Equal(t, KindInvalidJSON, fail.Kind)
}

func TestDecode_Base64OfGarbage_KeepsTranscript(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("definitely not a credential"))
	d, fail := decode(Classify(encoded))
	require.Nil(t, d)
	require.NotNil(t, fail)
	assert.Equal(t, KindInvalidJSON, fail.Kind)
	assert.Contains(t, fail.Transcript(), "direct JSON parse failed")
	assert.Contains(t, fail.Transcript(), "base64-decode succeeded but decoded text is not parseable JSON")
	assert.Contains(t, fail.Transcript(), "decoded length 27")
}

func TestDecode_InvalidBase64(t *testing.T) {
	// Restricted alphabet, but length ≡ 1 (mod 4) is impossible for
	// base64 whether padded or not.
	d, fail := decode(Classify("QUJDA"))
	require.Nil(t, d)
	require.NotNil(t, fail)
	assert.Equal(t, KindInvalidEncoding, fail.Kind)
}

func TestDecode_FilePath(t *testing.T) {
	d, fail := decode(Classify("/etc/gcp/key.json"))
	require.Nil(t, d)
	require.NotNil(t, fail)
	assert.Contains(t, fail.Transcript(), "file path")
}
