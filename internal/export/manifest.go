package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	manifestBaseNameConstant               = "export-manifest"
	manifestExtensionSeparatorConstant     = "."
	manifestIndentWidthConstant            = 2
	manifestFilePermissionsConstant        = 0o644
	manifestEncodeErrorTemplateConstant    = "unable to encode manifest: %w"
	manifestWriteErrorTemplateConstant     = "unable to write manifest %s: %w"
	manifestReadErrorTemplateConstant      = "unable to read manifest %s: %w"
	manifestDecodeErrorTemplateConstant    = "unable to decode manifest %s: %w"
	unsupportedFormatErrorTemplateConstant = "unsupported manifest format %q"
)

// ManifestFormat selects the encoding of the export manifest.
type ManifestFormat string

// Supported manifest encodings.
const (
	ManifestFormatYAML ManifestFormat = ManifestFormat("yaml")
	ManifestFormatTOML ManifestFormat = ManifestFormat("toml")
)

// Supported reports whether the format can be encoded.
func (format ManifestFormat) Supported() bool {
	return format == ManifestFormatYAML || format == ManifestFormatTOML
}

// FileName returns the manifest file name for the format.
func (format ManifestFormat) FileName() string {
	return manifestBaseNameConstant + manifestExtensionSeparatorConstant + string(format)
}

// Manifest records what one export run produced. Artifact paths are relative to the workspace and
// use forward slashes.
type Manifest struct {
	RunIdentifier    string    `yaml:"run_id" toml:"run_id"`
	GeneratedAt      time.Time `yaml:"generated_at" toml:"generated_at"`
	CollectionURL    string    `yaml:"collection_url" toml:"collection_url"`
	Projects         []string  `yaml:"projects" toml:"projects"`
	Artifacts        []string  `yaml:"artifacts" toml:"artifacts"`
	RemovedArtifacts []string  `yaml:"removed_artifacts,omitempty" toml:"removed_artifacts,omitempty"`
	Failures         []string  `yaml:"failures,omitempty" toml:"failures,omitempty"`
}

// WriteManifest encodes the manifest in the requested format and writes it to path.
func WriteManifest(fileSystem afero.Fs, path string, format ManifestFormat, manifest Manifest) error {
	normalized := manifest
	normalized.GeneratedAt = manifest.GeneratedAt.UTC().Truncate(time.Second)
	normalized.Artifacts = sortedCopy(manifest.Artifacts)
	normalized.RemovedArtifacts = sortedCopy(manifest.RemovedArtifacts)

	var buffer bytes.Buffer
	switch format {
	case ManifestFormatYAML:
		encoder := yaml.NewEncoder(&buffer)
		encoder.SetIndent(manifestIndentWidthConstant)
		if encodeError := encoder.Encode(normalized); encodeError != nil {
			return fmt.Errorf(manifestEncodeErrorTemplateConstant, encodeError)
		}
		if closeError := encoder.Close(); closeError != nil {
			return fmt.Errorf(manifestEncodeErrorTemplateConstant, closeError)
		}
	case ManifestFormatTOML:
		if encodeError := toml.NewEncoder(&buffer).Encode(normalized); encodeError != nil {
			return fmt.Errorf(manifestEncodeErrorTemplateConstant, encodeError)
		}
	default:
		return fmt.Errorf(unsupportedFormatErrorTemplateConstant, format)
	}

	if writeError := afero.WriteFile(fileSystem, path, buffer.Bytes(), manifestFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(manifestWriteErrorTemplateConstant, path, writeError)
	}
	return nil
}

// LoadManifest reads a manifest written by WriteManifest. The boolean is false when no manifest exists.
func LoadManifest(fileSystem afero.Fs, path string, format ManifestFormat) (Manifest, bool, error) {
	content, readError := afero.ReadFile(fileSystem, path)
	if readError != nil {
		if errors.Is(readError, os.ErrNotExist) {
			return Manifest{}, false, nil
		}
		return Manifest{}, false, fmt.Errorf(manifestReadErrorTemplateConstant, path, readError)
	}

	var manifest Manifest
	switch format {
	case ManifestFormatYAML:
		if decodeError := yaml.Unmarshal(content, &manifest); decodeError != nil {
			return Manifest{}, false, fmt.Errorf(manifestDecodeErrorTemplateConstant, path, decodeError)
		}
	case ManifestFormatTOML:
		if _, decodeError := toml.Decode(string(content), &manifest); decodeError != nil {
			return Manifest{}, false, fmt.Errorf(manifestDecodeErrorTemplateConstant, path, decodeError)
		}
	default:
		return Manifest{}, false, fmt.Errorf(unsupportedFormatErrorTemplateConstant, format)
	}
	return manifest, true, nil
}

func sortedCopy(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	copied := append([]string(nil), values...)
	sort.Strings(copied)
	return copied
}
