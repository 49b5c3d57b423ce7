package spkg

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

const DefaultRegistryURL = "https://spkg.io"

// NameRegexp is shared by output module names and registry package names.
var NameRegexp = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9_-]{0,63})$`)

type ReferenceKind string

const (
	ReferenceKindLocal    ReferenceKind = "local"
	ReferenceKindHTTP     ReferenceKind = "http"
	ReferenceKindRegistry ReferenceKind = "registry"
)

// Reference is a resolved source package location.
type Reference struct {
	Raw  string
	Kind ReferenceKind

	// Location is a filesystem path for local references and a full URL for
	// http and registry ones.
	Location string

	// Name and Version are only set for registry references.
	Name    string
	Version string
}

func (r *Reference) String() string {
	return fmt.Sprintf("%s (%s)", r.Location, r.Kind)
}

// ParseReference resolves a local path, a `file://` URI, an `http(s)://` URL
// or a `<name>@<version>` registry reference. A bare `<name>` matching
// NameRegexp is a registry reference at version `latest`.
func ParseReference(input string, registryURL string) (*Reference, error) {
	if input == "" {
		return nil, fmt.Errorf("package reference is empty")
	}

	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return &Reference{Raw: input, Kind: ReferenceKindHTTP, Location: input}, nil
	}

	if strings.HasPrefix(input, "file://") {
		path := strings.TrimPrefix(input, "file://")
		if path == "" {
			return nil, fmt.Errorf("package reference %q has an empty file path", input)
		}

		return &Reference{Raw: input, Kind: ReferenceKindLocal, Location: path}, nil
	}

	if looksLikeRegistryReference(input) {
		name, version, err := parseNameAndVersion(input)
		if err != nil {
			return nil, err
		}

		if registryURL == "" {
			registryURL = DefaultRegistryURL
		}

		return &Reference{
			Raw:      input,
			Kind:     ReferenceKindRegistry,
			Location: fmt.Sprintf("%s/v1/packages/%s/%s", strings.TrimSuffix(registryURL, "/"), name, version),
			Name:     name,
			Version:  version,
		}, nil
	}

	return &Reference{Raw: input, Kind: ReferenceKindLocal, Location: input}, nil
}

func looksLikeRegistryReference(input string) bool {
	if strings.ContainsAny(input, `/\`) {
		return false
	}

	if strings.Contains(input, "@") {
		return true
	}

	return NameRegexp.MatchString(input)
}

func parseNameAndVersion(input string) (name string, version string, err error) {
	parts := strings.Split(input, "@")
	if len(parts) > 2 {
		return "", "", fmt.Errorf("package name %q does not follow the convention of <package>@<version>", input)
	}

	name = parts[0]
	if !NameRegexp.MatchString(name) {
		return "", "", fmt.Errorf("package name %q does not match regexp %s", name, NameRegexp.String())
	}

	if len(parts) == 1 || parts[1] == "" || parts[1] == "latest" {
		return name, "latest", nil
	}

	version = parts[1]
	if !isFullSemver(version) {
		return "", "", fmt.Errorf("version %q is not valid semver format, expected <major>.<minor>.<patch>", version)
	}

	return name, version, nil
}

// isFullSemver accepts an optionally 'v' prefixed MAJOR.MINOR.PATCH version,
// with optional pre-release and build metadata. The shorthands 'v1' and
// 'v1.2' are rejected.
func isFullSemver(version string) bool {
	full := "v" + strings.TrimPrefix(version, "v")
	if !semver.IsValid(full) {
		return false
	}

	withoutBuild, _, _ := strings.Cut(full, "+")
	return semver.Canonical(full) == withoutBuild
}
