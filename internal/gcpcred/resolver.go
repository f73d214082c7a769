package gcpcred

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Lumenline/optimizer-dashboard/pkg/utils"
)

// Source is one named, prioritized list of environment variables expected
// to hold an entire encoded key file ("blob" style). Earlier sources and
// earlier names within a source win. The lists are a versioned contract:
// add names at the end, never remove or reorder.
type Source struct {
	Label string
	Names []string
}

var blobSources = []Source{
	{Label: "primary", Names: []string{"GCP_SERVICE_ACCOUNT", "GCP_SERVICE_ACCOUNT_JSON"}},
	{Label: "application-default", Names: []string{"GOOGLE_APPLICATION_CREDENTIALS_JSON", "GOOGLE_CREDENTIALS"}},
	// Names predating the dashboard rename; kept for existing deployments.
	{Label: "legacy", Names: []string{"BIGQUERY_CREDENTIALS", "BQ_CREDENTIALS_JSON"}},
}

// Resolver locates, decodes and validates the BigQuery service-account
// credential from environment state. It is stateless and side-effect-free
// apart from diagnostic logging; concurrent use needs no locking. Callers
// wanting to avoid recomputation memoize the result themselves.
type Resolver struct {
	env    Env
	logger *zap.Logger
}

// NewResolver builds a resolver over env. A nil logger disables diagnostics.
func NewResolver(env Env, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{env: env, logger: logger}
}

// ResolveCredentials resolves against the real process environment.
func ResolveCredentials(logger *zap.Logger) (*Resolution, *Failure) {
	return NewResolver(ProcessEnv{}, logger).Resolve()
}

// Resolve tries every blob source in priority order, then falls back to
// component assembly, and finally reports failure. The first validated
// credential wins; fragments from different sources are never merged.
func (r *Resolver) Resolve() (*Resolution, *Failure) {
	var (
		best        *Failure
		bestRank    int
		checkedAny  bool
		checkedVars []string
	)

	for _, src := range blobSources {
		checkedVars = append(checkedVars, src.Names...)
		value, from, ok := lookup(r.env, src.Names)
		if !ok {
			continue
		}
		checkedAny = true

		guess := Classify(value)
		decoded, decodeFail := decode(guess)
		if decodeFail != nil {
			f := r.blobDecodeFailure(src, from, guess, decodeFail)
			if rank := failureRank(f.Kind); rank > bestRank {
				best, bestRank = f, rank
			}
			continue
		}

		sa, valFail := validate(decoded.Value, from)
		if valFail != nil {
			r.logger.Debug("credentials.source_rejected",
				zap.String("source", from),
				zap.String("kind", string(valFail.Kind)))
			if rank := failureRank(valFail.Kind); rank > bestRank {
				best, bestRank = valFail, rank
			}
			continue
		}

		provenance := fmt.Sprintf("%s source %s (%s)", src.Label, from, decoded.Path)
		r.logger.Info("credentials.resolved",
			zap.String("provenance", provenance),
			zap.String("project_id", sa.ProjectID),
			zap.String("client_email", utils.MaskEmail(sa.ClientEmail)))
		return &Resolution{Credential: sa, ProjectID: sa.ProjectID, Source: provenance}, nil
	}

	// Fallback: assemble from individually supplied components.
	if fields, label := assembleFromParts(r.env); fields != nil {
		checkedAny = true
		sa, valFail := validate(fields, label)
		if valFail == nil {
			r.logger.Info("credentials.resolved",
				zap.String("provenance", label),
				zap.String("project_id", sa.ProjectID),
				zap.String("client_email", utils.MaskEmail(sa.ClientEmail)))
			return &Resolution{Credential: sa, ProjectID: sa.ProjectID, Source: label}, nil
		}
		if rank := failureRank(valFail.Kind); rank > bestRank {
			best = valFail
		}
	}

	// Something was configured and rejected: the most specific captured
	// failure explains it far better than a generic "missing".
	if checkedAny && best != nil {
		r.logger.Warn("credentials.resolution_failed",
			zap.String("kind", string(best.Kind)),
			zap.String("message", best.Message))
		return nil, best
	}

	f := &Failure{
		Kind:    KindMissing,
		Message: "no service-account credential is configured in the environment",
		Details: "checked variables: " + strings.Join(append(checkedVars, clientEmailNames[0], privateKeyNames[0]), ", "),
		Remediation: []string{
			"Set " + blobSources[0].Names[0] + " to the full service-account key JSON (raw, URL-encoded or base64).",
			"Or set " + clientEmailNames[0] + " and " + privateKeyNames[0] + " (plus " + projectIDNames[0] + " if the email is non-standard) to assemble the credential from parts.",
			"Or run on a platform with ambient Google credentials and leave all of these unset.",
		},
	}
	r.logger.Warn("credentials.resolution_failed", zap.String("kind", string(f.Kind)))
	return nil, f
}

// blobDecodeFailure turns a decoder transcript into an operator-facing
// failure for one blob source.
func (r *Resolver) blobDecodeFailure(src Source, from string, guess Guess, fail *DecodeFailure) *Failure {
	remediation := []string{
		"Check " + from + " for a corrupted copy/paste: truncated text, stray line breaks or smart quotes all break decoding.",
		"The value may be raw JSON (starting with '{'), URL-encoded JSON, or base64-encoded JSON; anything else is rejected.",
	}
	if guess.Format == FormatFilePath {
		remediation = append([]string{
			"The value looks like a file path. Inline the file's JSON content into " + from + ", or point GOOGLE_APPLICATION_CREDENTIALS at the file and unset " + from + " so ambient credentials pick it up.",
		}, remediation...)
	}
	f := &Failure{
		Kind:        fail.Kind,
		Message:     fmt.Sprintf("%s is set but could not be decoded into a service-account key", from),
		Details:     fail.Transcript(),
		Remediation: remediation,
	}
	r.logger.Debug("credentials.source_rejected",
		zap.String("source", from),
		zap.String("kind", string(f.Kind)),
		zap.String("transcript", fail.Transcript()))
	return f
}

// failureRank orders failure kinds by how far resolution got before the
// source was rejected; the resolver reports the furthest-reaching failure.
func failureRank(k Kind) int {
	switch k {
	case KindMissingFields:
		return 4
	case KindInvalidShape:
		return 3
	case KindInvalidJSON:
		return 2
	case KindInvalidEncoding:
		return 1
	default:
		return 0
	}
}
