package grammar

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rangefinder/internal/engine/syntax"
)

type VerificationIssue struct {
	Language     string
	ArtifactKind string
	ArtifactPath string
	ExpectedHash string
	ActualHash   string
	Reason       string
}

func (i VerificationIssue) String() string {
	if i.ArtifactPath == "" {
		return fmt.Sprintf("%s: %s", i.Language, i.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", i.Language, i.Reason, i.ArtifactPath)
}

// VerifyArtifacts checks every manifest artifact under baseDir against its
// pinned checksum and ABI version.
func VerifyArtifacts(baseDir string, manifest *Manifest) ([]VerificationIssue, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("baseDir must not be empty")
	}

	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("grammar base path is not a directory: %s", baseDir)
	}

	issues := make([]VerificationIssue, 0)
	for _, artifact := range manifest.Artifacts {
		issues = append(issues, verifyArtifact(baseDir, manifest, artifact)...)
	}
	sortIssues(issues)
	return issues, nil
}

// VerifyLanguages verifies the artifacts backing the dynamic grammars in
// sources. Compiled-in grammars need no manifest entry.
func VerifyLanguages(baseDir string, sources map[string]syntax.GrammarSource) ([]VerificationIssue, error) {
	manifest, err := LoadManifest(filepath.Join(baseDir, ManifestFile))
	if err != nil {
		return nil, err
	}

	issues := make([]VerificationIssue, 0)
	for language, source := range sources {
		if !source.Dynamic() {
			continue
		}
		artifact, ok := manifest.Artifact(source.Name)
		if !ok {
			issues = append(issues, VerificationIssue{
				Language: language,
				Reason:   "language missing from manifest",
			})
			continue
		}
		issues = append(issues, verifyArtifact(baseDir, manifest, artifact)...)
	}
	sortIssues(issues)
	return issues, nil
}

func verifyArtifact(baseDir string, manifest *Manifest, artifact Artifact) []VerificationIssue {
	var issues []VerificationIssue
	if !manifest.allowsABI(artifact.ABIVersion) {
		issues = append(issues, VerificationIssue{
			Language: artifact.Language,
			Reason:   fmt.Sprintf("unsupported ABI version %d", artifact.ABIVersion),
		})
	}
	issues = append(issues, verifyArtifactHash(baseDir, artifact.Language, "shared-library", artifact.LibraryPath, artifact.LibrarySHA256)...)
	if artifact.NodeTypesPath != "" {
		issues = append(issues, verifyArtifactHash(baseDir, artifact.Language, "node-types", artifact.NodeTypesPath, artifact.NodeTypesSHA256)...)
	}
	return issues
}

func verifyArtifactHash(baseDir, language, kind, relPath, expectedHash string) []VerificationIssue {
	actual, err := CalculateSHA256(filepath.Join(baseDir, relPath))
	if err != nil {
		return []VerificationIssue{{
			Language:     language,
			ArtifactKind: kind,
			ArtifactPath: relPath,
			ExpectedHash: expectedHash,
			ActualHash:   "<missing>",
			Reason:       "artifact missing or unreadable",
		}}
	}

	if actual == expectedHash {
		return nil
	}
	return []VerificationIssue{{
		Language:     language,
		ArtifactKind: kind,
		ArtifactPath: relPath,
		ExpectedHash: expectedHash,
		ActualHash:   actual,
		Reason:       "checksum mismatch",
	}}
}

func sortIssues(issues []VerificationIssue) {
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Language != issues[j].Language {
			return issues[i].Language < issues[j].Language
		}
		if issues[i].ArtifactKind != issues[j].ArtifactKind {
			return issues[i].ArtifactKind < issues[j].ArtifactKind
		}
		if issues[i].ArtifactPath != issues[j].ArtifactPath {
			return issues[i].ArtifactPath < issues[j].ArtifactPath
		}
		return issues[i].Reason < issues[j].Reason
	})
}
