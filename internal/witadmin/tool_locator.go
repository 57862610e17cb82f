package witadmin

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
	"go.uber.org/zap"
)

const (
	// ToolName is the executable name searched for on PATH.
	ToolName = "witadmin"

	toolFileNameConstant                  = "witadmin.exe"
	toolNotFoundMessageConstant           = "witadmin executable not found"
	configuredToolMissingTemplateConstant = "configured witadmin path %s is not usable: %w"
	configuredToolIsDirectoryConstant     = "path is a directory"
	programFilesX86EnvironmentConstant    = "ProgramFiles(x86)"
	programFilesEnvironmentConstant       = "ProgramFiles"
	visualStudioDirectoryConstant         = "Microsoft Visual Studio"
	legacyVisualStudioPatternConstant     = "Microsoft Visual Studio *"
	legacyVisualStudioPrefixConstant      = "Microsoft Visual Studio "
	wildcardSegmentConstant               = "*"
	pathSeparatorConstant                 = "/"
	teamExplorerRelativePathConstant      = "Common7/IDE/CommonExtensions/Microsoft/TeamFoundation/Team Explorer"
	legacyIDERelativePathConstant         = "Common7/IDE"
	locatorConfiguredMessageConstant      = "Using configured witadmin executable"
	locatorConfiguredMissingConstant      = "Configured witadmin executable is not usable; searching"
	locatorPathMessageConstant            = "Found witadmin on PATH"
	locatorInstallationMessageConstant    = "Found witadmin in installation directory"
	locatorFieldPathConstant              = "path"
	locatorFieldVersionConstant           = "installation_version"
	locatorFieldSearchRootCountConstant   = "search_roots"
)

// ErrToolNotFound indicates that no usable witadmin executable was found.
var ErrToolNotFound = errors.New(toolNotFoundMessageConstant)

// ToolLocator finds the witadmin executable. Lookup order: the configured path, PATH, then the
// Team Explorer folders of Visual Studio installations under the program files roots, newest first.
type ToolLocator struct {
	logger         *zap.Logger
	configuredPath string
	lookPath       func(file string) (string, error)
	searchRoots    []string
}

// ToolLocatorOption customizes a ToolLocator.
type ToolLocatorOption func(locator *ToolLocator)

// WithLookPath replaces the PATH lookup.
func WithLookPath(lookPath func(file string) (string, error)) ToolLocatorOption {
	return func(locator *ToolLocator) {
		if lookPath != nil {
			locator.lookPath = lookPath
		}
	}
}

// WithSearchRoots replaces the program files roots probed for installations.
func WithSearchRoots(searchRoots ...string) ToolLocatorOption {
	return func(locator *ToolLocator) {
		locator.searchRoots = searchRoots
	}
}

// NewToolLocator constructs a locator that prefers configuredPath when it is usable.
func NewToolLocator(logger *zap.Logger, configuredPath string, options ...ToolLocatorOption) *ToolLocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	locator := &ToolLocator{
		logger:         logger,
		configuredPath: strings.TrimSpace(configuredPath),
		lookPath:       exec.LookPath,
		searchRoots:    defaultSearchRoots(),
	}
	for _, option := range options {
		if option != nil {
			option(locator)
		}
	}
	return locator
}

// Locate returns the path of the witadmin executable or ErrToolNotFound.
func (locator *ToolLocator) Locate() (string, error) {
	if len(locator.configuredPath) > 0 {
		usableError := checkUsableFile(locator.configuredPath)
		if usableError == nil {
			locator.logger.Debug(locatorConfiguredMessageConstant, zap.String(locatorFieldPathConstant, locator.configuredPath))
			return locator.configuredPath, nil
		}
		locator.logger.Warn(locatorConfiguredMissingConstant, zap.Error(fmt.Errorf(configuredToolMissingTemplateConstant, locator.configuredPath, usableError)))
	}

	if resolvedPath, lookupError := locator.lookPath(ToolName); lookupError == nil {
		locator.logger.Debug(locatorPathMessageConstant, zap.String(locatorFieldPathConstant, resolvedPath))
		return resolvedPath, nil
	}

	for _, candidate := range locator.installationCandidates() {
		if checkUsableFile(candidate.path) == nil {
			locator.logger.Debug(locatorInstallationMessageConstant, zap.String(locatorFieldPathConstant, candidate.path), zap.String(locatorFieldVersionConstant, candidate.label))
			return candidate.path, nil
		}
	}

	locator.logger.Debug(toolNotFoundMessageConstant, zap.Int(locatorFieldSearchRootCountConstant, len(locator.searchRoots)))
	return "", ErrToolNotFound
}

type installationCandidate struct {
	path    string
	label   string
	version *version.Version
}

// installationCandidates lists probe paths. Year-named installations (Visual Studio 2017 and later)
// rank ahead of legacy numbered installations; each group is ordered newest first.
func (locator *ToolLocator) installationCandidates() []installationCandidate {
	candidates := make([]installationCandidate, 0)
	for _, root := range locator.searchRoots {
		trimmedRoot := strings.TrimSpace(root)
		if len(trimmedRoot) == 0 {
			continue
		}
		candidates = append(candidates, sortedCandidates(yearInstallations(trimmedRoot))...)
		candidates = append(candidates, sortedCandidates(legacyInstallations(trimmedRoot))...)
	}
	return candidates
}

func yearInstallations(root string) []installationCandidate {
	pattern := filepath.Join(root, visualStudioDirectoryConstant, wildcardSegmentConstant, wildcardSegmentConstant, filepath.FromSlash(teamExplorerRelativePathConstant), toolFileNameConstant)
	matches, _ := filepath.Glob(pattern)
	candidates := make([]installationCandidate, 0, len(matches))
	for _, match := range matches {
		candidates = append(candidates, newInstallationCandidate(match, leadingSegment(filepath.Join(root, visualStudioDirectoryConstant), match)))
	}
	return candidates
}

func legacyInstallations(root string) []installationCandidate {
	pattern := filepath.Join(root, legacyVisualStudioPatternConstant, filepath.FromSlash(legacyIDERelativePathConstant), toolFileNameConstant)
	matches, _ := filepath.Glob(pattern)
	candidates := make([]installationCandidate, 0, len(matches))
	for _, match := range matches {
		label := strings.TrimPrefix(leadingSegment(root, match), legacyVisualStudioPrefixConstant)
		candidates = append(candidates, newInstallationCandidate(match, label))
	}
	return candidates
}

// leadingSegment returns the first directory of target below base.
func leadingSegment(base string, target string) string {
	relativePath, relativeError := filepath.Rel(base, target)
	if relativeError != nil {
		return ""
	}
	return strings.SplitN(filepath.ToSlash(relativePath), pathSeparatorConstant, 2)[0]
}

func newInstallationCandidate(path string, label string) installationCandidate {
	parsedVersion, parseError := version.NewVersion(label)
	if parseError != nil {
		parsedVersion = nil
	}
	return installationCandidate{path: path, label: label, version: parsedVersion}
}

// sortedCandidates orders by version descending; unparsable versions sort last by path.
func sortedCandidates(candidates []installationCandidate) []installationCandidate {
	sort.SliceStable(candidates, func(left int, right int) bool {
		leftVersion := candidates[left].version
		rightVersion := candidates[right].version
		switch {
		case leftVersion != nil && rightVersion != nil:
			if leftVersion.Equal(rightVersion) {
				return candidates[left].path < candidates[right].path
			}
			return leftVersion.GreaterThan(rightVersion)
		case leftVersion != nil:
			return true
		case rightVersion != nil:
			return false
		default:
			return candidates[left].path < candidates[right].path
		}
	})
	return candidates
}

func checkUsableFile(path string) error {
	fileInfo, statError := os.Stat(path)
	if statError != nil {
		return statError
	}
	if fileInfo.IsDir() {
		return errors.New(configuredToolIsDirectoryConstant)
	}
	return nil
}

func defaultSearchRoots() []string {
	roots := make([]string, 0, 2)
	seen := map[string]struct{}{}
	for _, variable := range []string{programFilesX86EnvironmentConstant, programFilesEnvironmentConstant} {
		root := strings.TrimSpace(os.Getenv(variable))
		if len(root) == 0 {
			continue
		}
		if _, duplicate := seen[root]; duplicate {
			continue
		}
		seen[root] = struct{}{}
		roots = append(roots, root)
	}
	return roots
}
