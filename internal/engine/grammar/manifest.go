package grammar

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"rangefinder/internal/shared/util"
)

// ManifestFile is the manifest's file name inside the grammars directory.
const ManifestFile = "manifest.toml"

type Manifest struct {
	Version            int        `toml:"version"`
	AllowedABIVersions []int      `toml:"allowed_abi_versions"`
	Artifacts          []Artifact `toml:"artifacts"`
}

// Artifact pins one shared grammar library by checksum.
type Artifact struct {
	Language        string `toml:"language"`
	ABIVersion      int    `toml:"abi_version"`
	LibraryPath     string `toml:"library_path"`
	LibrarySHA256   string `toml:"library_sha256"`
	NodeTypesPath   string `toml:"node_types_path,omitempty"`
	NodeTypesSHA256 string `toml:"node_types_sha256,omitempty"`
	Source          string `toml:"source,omitempty"`
	ApprovedDate    string `toml:"approved_date,omitempty"`
}

// LoadManifest reads and validates a grammar manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if _, err := toml.Decode(string(data), &manifest); err != nil {
		return nil, fmt.Errorf("decode grammar manifest %s: %w", path, err)
	}

	if manifest.Version <= 0 {
		return nil, fmt.Errorf("manifest version must be > 0")
	}
	if len(manifest.AllowedABIVersions) == 0 {
		return nil, fmt.Errorf("manifest must define allowed_abi_versions")
	}

	seen := make(map[string]bool, len(manifest.Artifacts))
	for i, artifact := range manifest.Artifacts {
		ref := fmt.Sprintf("artifacts[%d]", i)
		artifact = normalizeArtifact(artifact)

		if artifact.Language == "" {
			return nil, fmt.Errorf("%s.language must not be empty", ref)
		}
		if seen[artifact.Language] {
			return nil, fmt.Errorf("duplicate language entry %q in manifest", artifact.Language)
		}
		seen[artifact.Language] = true
		if artifact.ABIVersion <= 0 {
			return nil, fmt.Errorf("%s.abi_version must be > 0", ref)
		}
		if artifact.LibraryPath == "" || artifact.LibrarySHA256 == "" {
			return nil, fmt.Errorf("%s.library_path and library_sha256 must not be empty", ref)
		}
		if (artifact.NodeTypesPath == "") != (artifact.NodeTypesSHA256 == "") {
			return nil, fmt.Errorf("%s.node_types_path and node_types_sha256 must be set together", ref)
		}
		manifest.Artifacts[i] = artifact
	}

	return &manifest, nil
}

func normalizeArtifact(artifact Artifact) Artifact {
	artifact.Language = strings.TrimSpace(artifact.Language)
	artifact.LibraryPath = cleanRelPath(artifact.LibraryPath)
	artifact.NodeTypesPath = cleanRelPath(artifact.NodeTypesPath)
	artifact.LibrarySHA256 = strings.TrimSpace(strings.ToLower(artifact.LibrarySHA256))
	artifact.NodeTypesSHA256 = strings.TrimSpace(strings.ToLower(artifact.NodeTypesSHA256))
	artifact.Source = strings.TrimSpace(artifact.Source)
	artifact.ApprovedDate = strings.TrimSpace(artifact.ApprovedDate)
	return artifact
}

func cleanRelPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// Save writes the manifest to path, creating the grammars directory if needed.
func (m *Manifest) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return err
	}
	return util.WriteFileWithDirs(path, buf.Bytes(), 0o644)
}

// Artifact returns the entry for language, if any.
func (m *Manifest) Artifact(language string) (Artifact, bool) {
	for _, art := range m.Artifacts {
		if art.Language == language {
			return art, true
		}
	}
	return Artifact{}, false
}

// AddArtifact inserts or replaces the entry for art.Language.
func (m *Manifest) AddArtifact(art Artifact) {
	if art.ApprovedDate == "" {
		art.ApprovedDate = time.Now().Format("2006-01-02")
	}
	art = normalizeArtifact(art)
	for i, existing := range m.Artifacts {
		if existing.Language == art.Language {
			m.Artifacts[i] = art
			return
		}
	}
	m.Artifacts = append(m.Artifacts, art)
}

func (m *Manifest) RemoveArtifact(language string) {
	out := make([]Artifact, 0, len(m.Artifacts))
	for _, art := range m.Artifacts {
		if art.Language != language {
			out = append(out, art)
		}
	}
	m.Artifacts = out
}

func (m *Manifest) allowsABI(version int) bool {
	for _, allowed := range m.AllowedABIVersions {
		if allowed == version {
			return true
		}
	}
	return false
}

// CalculateSHA256 returns the hex-encoded SHA-256 of the file at path.
func CalculateSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
