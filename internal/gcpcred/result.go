package gcpcred

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a resolution failure. Kinds are part of the wire
// contract: the dashboard UI keys its remediation rendering off them.
type Kind string

const (
	// KindMissing — no candidate variable held any value at all.
	KindMissing Kind = "missing"
	// KindInvalidEncoding — a base64 decode was attempted and failed outright.
	KindInvalidEncoding Kind = "invalid-encoding"
	// KindInvalidJSON — some decode path produced text, but the text does
	// not parse as JSON.
	KindInvalidJSON Kind = "invalid-json"
	// KindInvalidShape — the value parsed, but is not a service-account
	// key object (wrong JSON type or wrong "type" discriminator).
	KindInvalidShape Kind = "invalid-shape"
	// KindMissingFields — right discriminator, but one or more mandatory
	// fields are absent or empty.
	KindMissingFields Kind = "missing-fields"
)

// Failure describes why no usable credential could be produced. It is
// data first and an error second: HTTP handlers serialize it into the
// response body verbatim so operators can fix the deployment without
// reading source code.
type Failure struct {
	Kind        Kind     `json:"kind"`
	Message     string   `json:"message"`
	Details     string   `json:"details,omitempty"`
	Remediation []string `json:"remediation"`
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("credentials: %s: %s", f.Kind, f.Message)
}

// FailureFrom recovers the typed failure carried by err. Errors that did
// not originate from this package are wrapped into an invalid-shape
// failure so callers always have something render-able.
func FailureFrom(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{
		Kind:        KindInvalidShape,
		Message:     err.Error(),
		Remediation: []string{"Re-run credential resolution; this error did not come from the resolver itself."},
	}
}

// Resolution is a successfully resolved credential plus its provenance.
// Source is diagnostic text only (e.g. "GOOGLE_APPLICATION_CREDENTIALS_JSON
// (base64-decoded)") and must never drive control flow.
type Resolution struct {
	Credential *ServiceAccount
	ProjectID  string
	Source     string
}

// ServiceAccount is a parsed service-account key file. The five required
// fields are lifted out for direct access; every attribute of the original
// document, known or not, is kept so the JSON handed to the BigQuery
// client round-trips.
type ServiceAccount struct {
	Type         string
	ProjectID    string
	PrivateKeyID string
	PrivateKey   string
	ClientEmail  string

	fields map[string]any
}

func newServiceAccount(fields map[string]any) *ServiceAccount {
	str := func(name string) string {
		v, _ := fields[name].(string)
		return v
	}
	return &ServiceAccount{
		Type:         str("type"),
		ProjectID:    str("project_id"),
		PrivateKeyID: str("private_key_id"),
		PrivateKey:   str("private_key"),
		ClientEmail:  str("client_email"),
		fields:       fields,
	}
}

// Field returns a passthrough attribute (token_uri, client_id, …) from the
// original key file.
func (s *ServiceAccount) Field(name string) (any, bool) {
	v, ok := s.fields[name]
	return v, ok
}

// JSON renders the credential as a service-account key file suitable for
// option.WithCredentialsJSON. Passthrough attributes survive unchanged;
// the normalized mandatory fields replace whatever form they arrived in.
func (s *ServiceAccount) JSON() ([]byte, error) {
	out := make(map[string]any, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	out["type"] = s.Type
	out["project_id"] = s.ProjectID
	out["private_key_id"] = s.PrivateKeyID
	out["private_key"] = s.PrivateKey
	out["client_email"] = s.ClientEmail
	return json.Marshal(out)
}

// describeJSONType names a decoded JSON value's type in operator terms.
func describeJSONType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "a boolean"
	case float64, json.Number:
		return "a number"
	case string:
		return "a string"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	default:
		return strings.TrimPrefix(fmt.Sprintf("%T", v), "*")
	}
}
