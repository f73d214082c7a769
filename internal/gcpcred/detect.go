package gcpcred

import "strings"

// Format is the detector's best guess at how a candidate value is encoded.
type Format string

const (
	// FormatRawJSON — the value starts with '{' or '['.
	FormatRawJSON Format = "raw-json"
	// FormatURLEncoded — the value carries percent-escaped JSON syntax
	// (%7B / %7D / %22), typical of values pasted out of URLs or shell
	// quoting gone wrong.
	FormatURLEncoded Format = "url-encoded"
	// FormatFilePath — the value looks like a path on disk, not a
	// credential at all. The resolver never reads files; this class only
	// exists so the failure can say so.
	FormatFilePath Format = "file-path"
	// FormatOpaque — none of the above; possibly base64.
	FormatOpaque Format = "opaque"
)

// Guess is the detector's classification of a single candidate value.
// Value is the cleaned string the decoder chain should operate on.
type Guess struct {
	Format           Format
	Value            string
	Base64Confidence float64
}

// base64DecodeThreshold gates whether the decoder chain bothers attempting
// a base64 decode at all.
const base64DecodeThreshold = 0.3

// Classify inspects a raw candidate value and guesses its encoding. Pure
// function of its input; no environment access.
func Classify(raw string) Guess {
	v := strings.TrimSpace(raw)

	if strings.HasPrefix(v, "{") || strings.HasPrefix(v, "[") {
		// JSON-prefixed text is never base64, whatever else it is.
		return Guess{Format: FormatRawJSON, Value: v, Base64Confidence: 0}
	}

	// Operators pasting secrets introduce stray line breaks; outside of
	// JSON-prefixed values they are never meaningful.
	v = strings.NewReplacer("\r", "", "\n", "").Replace(v)

	lower := strings.ToLower(v)
	if strings.Contains(lower, "%7b") || strings.Contains(lower, "%7d") || strings.Contains(lower, "%22") {
		return Guess{Format: FormatURLEncoded, Value: v, Base64Confidence: base64Confidence(v)}
	}

	if looksLikePath(v) {
		return Guess{Format: FormatFilePath, Value: v, Base64Confidence: 0}
	}

	return Guess{Format: FormatOpaque, Value: v, Base64Confidence: base64Confidence(v)}
}

func looksLikePath(v string) bool {
	if strings.HasPrefix(v, "/") || strings.HasPrefix(v, "./") || strings.HasPrefix(v, "~/") {
		return true
	}
	return strings.HasSuffix(v, ".json") && !strings.ContainsAny(v, " \t")
}

// base64Confidence scores how likely v is to be base64-encoded data, in
// [0,1]. It is a heuristic to skip decode attempts on clearly non-encoded
// text, not a verdict: genuinely encoded text that scores low is a caller
// problem, text that scores high may still fail to decode.
func base64Confidence(v string) float64 {
	if v == "" {
		return 0
	}
	pad := 0
	for i := len(v) - 1; i >= 0 && v[i] == '='; i-- {
		pad++
	}
	for i := 0; i < len(v)-pad; i++ {
		c := v[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/':
		default:
			return 0
		}
	}

	score := 0.3
	if len(v) >= 100 {
		score += 0.2
	}
	if len(v)%4 == 0 {
		score += 0.3
	} else {
		// Unpadded base64 lands off the 4-boundary; still worth a try.
		score += 0.1
	}
	if pad > 2 {
		// Legal base64 never carries more than two padding characters.
		score -= 0.5
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
