package gcpcred

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_RawJSON(t *testing.T) {
	g := Classify(`  {"type":"service_account"}  `)
	assert.Equal(t, FormatRawJSON, g.Format)
	assert.Equal(t, `{"type":"service_account"}`, g.Value)
	assert.Zero(t, g.Base64Confidence, "JSON-prefixed values must never be base64 candidates")
}

func TestClassify_JSONArray(t *testing.T) {
	g := Classify(`[{"type":"service_account"}]`)
	assert.Equal(t, FormatRawJSON, g.Format)
	assert.Zero(t, g.Base64Confidence)
}

func TestClassify_URLEncoded(t *testing.T) {
	for _, v := range []string{
		`%7B%22type%22%3A%22service_account%22%7D`,
		`%7b%22type%22%3a%22x%22%7d`, // lower-case escapes
	} {
		g := Classify(v)
		assert.Equal(t, FormatURLEncoded, g.Format, v)
	}
}

func TestClassify_FilePath(t *testing.T) {
	for _, v := range []string{
		"/etc/gcp/key.json",
		"./key.json",
		"~/secrets/sa.json",
		"creds/sa.json",
	} {
		g := Classify(v)
		assert.Equal(t, FormatFilePath, g.Format, v)
		assert.Zero(t, g.Base64Confidence)
	}
}

func TestClassify_StripsEmbeddedNewlines(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"type":"service_account"}`))
	broken := encoded[:10] + "\n" + encoded[10:] + "\r\n"
	g := Classify(broken)
	assert.Equal(t, encoded, g.Value)
	assert.Greater(t, g.Base64Confidence, base64DecodeThreshold)
}

func TestClassify_NewlinesNotStrippedFromJSON(t *testing.T) {
	v := "{\n  \"type\": \"service_account\"\n}"
	g := Classify(v)
	assert.Equal(t, FormatRawJSON, g.Format)
	assert.Contains(t, g.Value, "\n")
}

func TestBase64Confidence_RejectsNonAlphabet(t *testing.T) {
	assert.Zero(t, base64Confidence("not json at all"), "spaces fail the restricted-alphabet check")
	assert.Zero(t, base64Confidence("abc-def_ghi"))
	assert.Zero(t, base64Confidence(""))
}

func TestBase64Confidence_Scoring(t *testing.T) {
	long := strings.Repeat("QUJD", 30) // 120 chars, aligned
	assert.GreaterOrEqual(t, base64Confidence(long), 0.8)

	// Aligned but short: confident enough to try.
	assert.Greater(t, base64Confidence("QUJD"), base64DecodeThreshold)

	// Misaligned length: medium confidence only.
	assert.InDelta(t, 0.4, base64Confidence("QUJDA"), 0.01)

	// Excessive padding is a strong negative signal.
	assert.Less(t, base64Confidence("QUJD===="), base64Confidence("QUJD"))
}

func TestBase64Confidence_Bounds(t *testing.T) {
	for _, v := range []string{"QUJD", strings.Repeat("A", 401), "====", "A"} {
		score := base64Confidence(v)
		assert.GreaterOrEqual(t, score, 0.0, v)
		assert.LessOrEqual(t, score, 1.0, v)
	}
}
