// Package descriptor finds, parses and rewrites the CI descriptor of a
// source repository before it is mirrored to GitLab.
package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/go-jsonnet"
	"gopkg.in/yaml.v3"

	"github.com/sevigo/hub2lab/internal/core"
)

const (
	// GitLabCIFile is the descriptor GitLab reads and the file written to the mirror.
	GitLabCIFile = ".gitlab-ci.yml"
	// JsonnetFile is evaluated to JSON when no GitLab CI file exists.
	JsonnetFile = ".failfast-ci.jsonnet"

	variablesKey = "variables"
)

// Candidates are probed in order in the repository root; the first match wins.
var Candidates = []string{GitLabCIFile, JsonnetFile}

// Variables read from the descriptor to override the destination project.
const (
	VarNamespace  = "FAILFASTCI_NAMESPACE"
	VarRepository = "GITLAB_REPOSITORY"
)

// Descriptor is a parsed CI file.
type Descriptor struct {
	// File is the candidate the descriptor was read from.
	File    string
	Raw     []byte
	content map[string]any
}

// Load probes the candidates in repoPath and parses the first one found.
func Load(repoPath string) (*Descriptor, error) {
	for _, name := range Candidates {
		path := filepath.Join(repoPath, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return Parse(path, data)
	}
	return nil, &core.DescriptorNotFound{Candidates: slices.Clone(Candidates)}
}

// Parse decodes data according to the base name of path. Jsonnet imports are
// resolved relative to path.
func Parse(path string, data []byte) (*Descriptor, error) {
	name := filepath.Base(path)
	var (
		content map[string]any
		err     error
	)
	if name == JsonnetFile || strings.HasSuffix(name, ".jsonnet") {
		content, err = evaluateJsonnet(path, data)
	} else {
		err = yaml.Unmarshal(data, &content)
	}
	if err != nil {
		return nil, &core.DescriptorParseError{File: name, Err: err}
	}
	if content == nil {
		return nil, &core.DescriptorParseError{File: name, Err: errors.New("descriptor is empty")}
	}
	return &Descriptor{File: name, Raw: data, content: content}, nil
}

func evaluateJsonnet(path string, data []byte) (map[string]any, error) {
	vm := jsonnet.MakeVM()
	vm.Importer(&jsonnet.FileImporter{JPaths: []string{filepath.Dir(path)}})
	out, err := vm.EvaluateAnonymousSnippet(path, string(data))
	if err != nil {
		return nil, err
	}
	var content map[string]any
	if err := json.Unmarshal([]byte(out), &content); err != nil {
		return nil, fmt.Errorf("jsonnet did not evaluate to an object: %w", err)
	}
	return content, nil
}

// Variables returns the global variables block as strings. Values declared in
// the extended {value: ...} form are flattened.
func (d *Descriptor) Variables() map[string]string {
	vars := make(map[string]string)
	block, ok := d.content[variablesKey].(map[string]any)
	if !ok {
		return vars
	}
	for k, v := range block {
		if ext, ok := v.(map[string]any); ok {
			v = ext["value"]
		}
		vars[k] = scalar(v)
	}
	return vars
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Inject merges vars into the variables block, replacing existing keys.
func (d *Descriptor) Inject(vars map[string]string) {
	block, ok := d.content[variablesKey].(map[string]any)
	if !ok {
		block = make(map[string]any, len(vars))
	}
	for k, v := range vars {
		block[k] = v
	}
	d.content[variablesKey] = block
}

// Render serializes the descriptor as GitLab CI YAML. Keys are emitted in
// sorted order so equal content always renders to the same bytes.
func (d *Descriptor) Render() ([]byte, error) {
	out, err := yaml.Marshal(d.content)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", GitLabCIFile, err)
	}
	return out, nil
}

// Jobs returns the names of the top-level entries that are not GitLab keywords.
func (d *Descriptor) Jobs() []string {
	var jobs []string
	for _, k := range slices.Sorted(maps.Keys(d.content)) {
		if _, reserved := reservedKeys[k]; reserved || strings.HasPrefix(k, ".") {
			continue
		}
		if _, ok := d.content[k].(map[string]any); ok {
			jobs = append(jobs, k)
		}
	}
	return jobs
}

var reservedKeys = map[string]struct{}{
	"before_script": {},
	"after_script":  {},
	"image":         {},
	"services":      {},
	"variables":     {},
	"stages":        {},
	"types":         {},
	"cache":         {},
	"default":       {},
	"include":       {},
	"workflow":      {},
}

// Destination resolves the GitLab namespace and project name for a source
// repository. GITLAB_REPOSITORY ("namespace/name") wins over
// FAILFASTCI_NAMESPACE, which wins over defaultNamespace. The default project
// name is the source slug with "/" replaced by "_".
func Destination(vars map[string]string, defaultNamespace, repoFullName string) (namespace, project string) {
	namespace = defaultNamespace
	if ns := vars[VarNamespace]; ns != "" {
		namespace = ns
	}
	project = strings.ReplaceAll(repoFullName, "/", "_")
	if repo := strings.Trim(vars[VarRepository], "/"); repo != "" {
		if i := strings.LastIndex(repo, "/"); i > 0 {
			return repo[:i], repo[i+1:]
		}
		project = repo
	}
	return namespace, project
}
