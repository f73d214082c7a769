package gcpcred

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// DecodePath names the transformation that produced a parsed value.
type DecodePath string

const (
	PathRawJSON       DecodePath = "raw JSON"
	PathURLDecoded    DecodePath = "URL-decoded"
	PathBase64Decoded DecodePath = "base64-decoded"
)

// Decoded is the output of a successful decoder-chain run: the parsed JSON
// value (still unvalidated, any JSON type) plus which path produced it.
type Decoded struct {
	Path  DecodePath
	Value any
}

// DecodeFailure records every attempt the chain made so the final error can
// say exactly which transformations were tried and why each failed. A bare
// "invalid credential" with no transcript is useless to an operator.
type DecodeFailure struct {
	Kind     Kind
	Attempts []string
}

// Transcript joins the attempt log into operator-readable detail text.
func (f *DecodeFailure) Transcript() string {
	return strings.Join(f.Attempts, "; ")
}

// decode runs the decoder chain over a classified value, short-circuiting
// on the first transformation whose output parses as JSON.
func decode(g Guess) (*Decoded, *DecodeFailure) {
	fail := &DecodeFailure{Kind: KindInvalidJSON}

	if g.Format == FormatFilePath {
		fail.Attempts = append(fail.Attempts,
			fmt.Sprintf("value looks like a file path (%q), not credential content; the resolver never reads files", preview(g.Value, 60)))
		return nil, fail
	}

	// 1. Direct parse.
	var parsed any
	if err := json.Unmarshal([]byte(g.Value), &parsed); err == nil {
		return &Decoded{Path: PathRawJSON, Value: parsed}, nil
	} else {
		fail.Attempts = append(fail.Attempts, "direct JSON parse failed: "+err.Error())
	}

	// 2. Percent-decode, then parse. PathUnescape rather than
	// QueryUnescape: key material legitimately contains '+', which must
	// not turn into a space.
	if strings.Contains(g.Value, "%") {
		unescaped, err := url.PathUnescape(g.Value)
		if err != nil {
			fail.Attempts = append(fail.Attempts, "URL-decode failed: "+err.Error())
		} else if err := json.Unmarshal([]byte(unescaped), &parsed); err == nil {
			return &Decoded{Path: PathURLDecoded, Value: parsed}, nil
		} else {
			fail.Attempts = append(fail.Attempts, "URL-decode succeeded but decoded text is not parseable JSON: "+err.Error())
		}
	}

	// 3. Base64-decode, then parse — only when the classifier thinks the
	// value plausibly is base64 at all.
	if g.Base64Confidence > base64DecodeThreshold {
		raw, err := base64Decode(g.Value)
		if err != nil {
			fail.Kind = KindInvalidEncoding
			fail.Attempts = append(fail.Attempts,
				fmt.Sprintf("base64-decode failed (confidence %.2f): %v", g.Base64Confidence, err))
		} else if err := json.Unmarshal(raw, &parsed); err == nil {
			return &Decoded{Path: PathBase64Decoded, Value: parsed}, nil
		} else {
			fail.Attempts = append(fail.Attempts,
				fmt.Sprintf("base64-decode succeeded but decoded text is not parseable JSON — decoded length %d, first 100 characters: %q",
					len(raw), preview(string(raw), 100)))
		}
	} else {
		fail.Attempts = append(fail.Attempts,
			fmt.Sprintf("base64-decode not attempted (confidence %.2f ≤ %.2f)", g.Base64Confidence, base64DecodeThreshold))
	}

	return nil, fail
}

// base64Decode accepts both padded and unpadded standard-alphabet input.
func base64Decode(v string) ([]byte, error) {
	if raw, err := base64.StdEncoding.DecodeString(v); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(v, "="))
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
