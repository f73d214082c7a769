package gcpcred

import (
	"fmt"
	"strings"
)

// serviceAccountType is the discriminator value of a service-account key
// file; any other "type" is a different credential shape entirely.
const serviceAccountType = "service_account"

// mandatoryFields must all be present and non-empty for a key file to be
// usable by the BigQuery client.
var mandatoryFields = []string{"type", "project_id", "private_key_id", "private_key", "client_email"}

// validate checks a decoded JSON value against the service-account key
// shape. source names the variable the value came from; it only feeds
// diagnostics. All missing fields are reported in one failure so the
// operator fixes the key file once, not once per field.
func validate(value any, source string) (*ServiceAccount, *Failure) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, &Failure{
			Kind:    KindInvalidShape,
			Message: fmt.Sprintf("%s parsed as JSON but is %s, not an object", source, describeJSONType(value)),
			Remediation: []string{
				"The value must be a service-account key file: a JSON object with a \"type\" field.",
				"If the variable holds an array of keys, supply exactly one key object instead.",
			},
		}
	}

	typ, _ := fields["type"].(string)
	if typ != serviceAccountType {
		return nil, &Failure{
			Kind:    KindInvalidShape,
			Message: fmt.Sprintf("%s is not a service-account key: \"type\" is %q, expected %q", source, typ, serviceAccountType),
			Remediation: []string{
				"Download a service-account key from the Google Cloud console (IAM → Service Accounts → Keys).",
				"Authorized-user and workload-identity credential files are not accepted here; use ambient credentials for those instead.",
			},
		}
	}

	var missing []string
	for _, name := range mandatoryFields {
		if v, _ := fields[name].(string); strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &Failure{
			Kind:    KindMissingFields,
			Message: fmt.Sprintf("%s is a service-account key but is missing required fields: %s", source, strings.Join(missing, ", ")),
			Details: fmt.Sprintf("required fields: %s", strings.Join(mandatoryFields, ", ")),
			Remediation: []string{
				"Re-download the key file; a complete key contains all of: " + strings.Join(mandatoryFields, ", ") + ".",
				"If the value was assembled from separate variables, set the variables for the fields listed above.",
			},
		}
	}

	return newServiceAccount(fields), nil
}
