package gcpcred

import "strings"

// Component candidate-name lists. Ordering is a versioned contract:
// appending a name is backward compatible, removing or reordering one is a
// breaking change for deployments relying on it.
var (
	clientEmailNames  = []string{"GCP_CLIENT_EMAIL", "GOOGLE_CLIENT_EMAIL"}
	privateKeyNames   = []string{"GCP_PRIVATE_KEY", "GOOGLE_PRIVATE_KEY"}
	privateKeyIDNames = []string{"GCP_PRIVATE_KEY_ID", "GOOGLE_PRIVATE_KEY_ID"}
	projectIDNames    = []string{"GCP_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "GOOGLE_PROJECT_ID"}
)

// assembledKeyIDPlaceholder stands in for private_key_id when only the
// email/key pair is configured. The BigQuery signer never consults it.
const assembledKeyIDPlaceholder = "assembled-from-env"

// assembleFromParts builds a key-file-shaped object from individually
// supplied component variables. It returns nil when either of the two
// essential components (client email, private key) is absent; a partially
// assembled object is never produced. Fields the components cannot supply
// are left for the validator to report, so the operator sees one precise
// "missing fields" error instead of a silent half-credential.
func assembleFromParts(env Env) (map[string]any, string) {
	email, emailFrom, ok := lookup(env, clientEmailNames)
	if !ok {
		return nil, ""
	}
	key, keyFrom, ok := lookup(env, privateKeyNames)
	if !ok {
		return nil, ""
	}

	fields := map[string]any{
		"type":         serviceAccountType,
		"client_email": email,
		"private_key":  normalizePrivateKey(key),
		"token_uri":    "https://oauth2.googleapis.com/token",
	}

	if keyID, _, ok := lookup(env, privateKeyIDNames); ok {
		fields["private_key_id"] = keyID
	} else {
		fields["private_key_id"] = assembledKeyIDPlaceholder
	}

	if project, _, ok := lookup(env, projectIDNames); ok {
		fields["project_id"] = project
	} else if derived := projectFromEmail(email); derived != "" {
		fields["project_id"] = derived
	}

	return fields, "components (" + emailFrom + " + " + keyFrom + ")"
}

// normalizePrivateKey turns transit-escaped "\n" sequences back into real
// line breaks. PEM parsers reject single-line key material, and platforms
// routinely require the escaped form in env var values.
func normalizePrivateKey(key string) string {
	return strings.ReplaceAll(strings.TrimSpace(key), `\n`, "\n")
}

// projectFromEmail derives the project id from a standard service-account
// address of the form name@project.iam.gserviceaccount.com. Non-standard
// addresses yield "" and leave the gap for the validator to report.
func projectFromEmail(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	project, rest, ok := strings.Cut(domain, ".")
	if !ok || rest != "iam.gserviceaccount.com" {
		return ""
	}
	return project
}
