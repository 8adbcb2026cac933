package descriptor

import (
	"errors"
	"strconv"

	"github.com/sevigo/hub2lab/internal/core"
)

// Variables injected into every mirrored descriptor.
const (
	VarEvent          = "EVENT"
	VarPRID           = "PR_ID"
	VarSHA            = "SHA"
	VarSHA8           = "SHA8"
	VarSourceRef      = "SOURCE_REF"
	VarRefName        = "REF_NAME"
	VarCIRef          = "CI_REF"
	VarInstallationID = "GITHUB_INSTALLATION_ID"
	VarGitHubRepo     = "GITHUB_REPO"
	VarStatusAPI      = "FAILFASTCI_STATUS_API"
	VarCorrelation    = "FAILFASTCI_CORRELATION"
)

const statusAPIPath = "/api/v1/github_status"

var errMissingSourceVariables = errors.New("descriptor carries neither a correlation nor a source sha")

// Source is what the mirror needs to know about the triggering event.
type Source struct {
	Event          core.EventKind
	PRNumber       int
	SHA            string
	RefName        string
	TargetRef      string
	InstallationID int64
	Repo           string
}

// InjectedVariables builds the variables written into the mirrored descriptor.
// The correlation must already carry the destination project id.
func InjectedVariables(src Source, corr core.ExternalCorrelation, failfastURL string) (map[string]string, error) {
	encoded, err := corr.Encode()
	if err != nil {
		return nil, err
	}
	var prID string
	if src.PRNumber > 0 {
		prID = strconv.Itoa(src.PRNumber)
	}
	sha8 := src.SHA
	if len(sha8) > 8 {
		sha8 = sha8[:8]
	}
	return map[string]string{
		VarEvent:          string(src.Event),
		VarPRID:           prID,
		VarSHA:            src.SHA,
		VarSHA8:           sha8,
		VarSourceRef:      src.RefName,
		VarRefName:        src.RefName,
		VarCIRef:          src.TargetRef,
		VarInstallationID: strconv.FormatInt(src.InstallationID, 10),
		VarGitHubRepo:     src.Repo,
		VarStatusAPI:      failfastURL + statusAPIPath,
		VarCorrelation:    encoded,
	}, nil
}

// ProjectVariables is the subset persisted on the GitLab project so status
// updates can reach GitHub without the original webhook.
func ProjectVariables(src Source) map[string]string {
	return map[string]string{
		VarInstallationID: strconv.FormatInt(src.InstallationID, 10),
		VarGitHubRepo:     src.Repo,
	}
}

// CorrelationFromVariables recovers the correlation injected by
// InjectedVariables. Older mirrors without FAILFASTCI_CORRELATION fall back to
// the individual SHA, SOURCE_REF and PR_ID variables.
func CorrelationFromVariables(vars map[string]string, projectID int) (core.ExternalCorrelation, error) {
	if raw := vars[VarCorrelation]; raw != "" {
		return core.DecodeCorrelation(raw)
	}
	corr := core.ExternalCorrelation{
		Kind:      core.ObjectPipeline,
		ProjectID: projectID,
		SourceRef: vars[VarSourceRef],
		SourceSHA: vars[VarSHA],
	}
	if id, err := strconv.Atoi(vars[VarPRID]); err == nil {
		corr.SourcePRID = id
	}
	if id, err := strconv.ParseInt(vars[VarInstallationID], 10, 64); err == nil {
		corr.InstallationID = id
	}
	if corr.SourceSHA == "" {
		return core.ExternalCorrelation{}, &core.CorrelationDecodeError{Err: errMissingSourceVariables}
	}
	if _, err := corr.Encode(); err != nil {
		return core.ExternalCorrelation{}, &core.CorrelationDecodeError{Raw: vars[VarSHA], Err: err}
	}
	return corr, nil
}
