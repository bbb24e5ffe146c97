package grammar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Builder clones a grammar repository and compiles it into a shared library.
type Builder struct {
	WorkDir string
	Stdout  io.Writer
	Stderr  io.Writer
}

func NewBuilder() (*Builder, error) {
	wd, err := os.MkdirTemp("", "rangefinder-grammar")
	if err != nil {
		return nil, err
	}
	return &Builder{WorkDir: wd, Stdout: os.Stdout, Stderr: os.Stderr}, nil
}

func (b *Builder) Cleanup() {
	os.RemoveAll(b.WorkDir)
}

// LibraryExtension returns the shared library suffix for the current platform.
func LibraryExtension() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// Build returns the compiled library path and the grammar's node-types.json.
func (b *Builder) Build(ctx context.Context, name, repoURL string) (string, string, error) {
	repoDir := filepath.Join(b.WorkDir, name)
	if err := b.run(ctx, b.WorkDir, "git", "clone", "--depth", "1", repoURL, repoDir); err != nil {
		return "", "", fmt.Errorf("git clone: %w", err)
	}

	srcDir := filepath.Join(repoDir, "src")
	if _, err := os.Stat(filepath.Join(srcDir, "parser.c")); os.IsNotExist(err) {
		if err := b.run(ctx, repoDir, "tree-sitter", "generate"); err != nil {
			return "", "", fmt.Errorf("tree-sitter generate: %w", err)
		}
	}

	libPath := filepath.Join(b.WorkDir, name+LibraryExtension())
	args := []string{"-o", libPath, "-I", srcDir, "-shared"}
	if runtime.GOOS != "windows" {
		args = append(args, "-fPIC")
	}
	args = append(args, filepath.Join(srcDir, "parser.c"))

	cc := os.Getenv("CC")
	if cc == "" {
		cc = "cc"
	}
	if scanner := filepath.Join(srcDir, "scanner.c"); fileExists(scanner) {
		args = append(args, scanner)
	} else if scanner := filepath.Join(srcDir, "scanner.cc"); fileExists(scanner) {
		args = append(args, scanner, "-lstdc++")
	}

	if err := b.run(ctx, repoDir, cc, args...); err != nil {
		return "", "", fmt.Errorf("compile: %w", err)
	}

	nodeTypesPath := filepath.Join(srcDir, "node-types.json")
	if !fileExists(nodeTypesPath) {
		return "", "", fmt.Errorf("node-types.json not found")
	}

	return libPath, nodeTypesPath, nil
}

func (b *Builder) run(ctx context.Context, dir, name string, args ...string) error {
	slog.Debug("grammar build step", "cmd", name, "dir", dir)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr
	return cmd.Run()
}

// Install copies built artifacts into grammarsPath/<name>/ and pins them in
// the manifest, creating the manifest if needed. The library is opened once
// to record the ABI version it reports.
func Install(grammarsPath, name, symbol, source, libPath, nodeTypesPath string) (Artifact, error) {
	destDir := filepath.Join(grammarsPath, name)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create grammar dir: %w", err)
	}

	destLib := filepath.Join(destDir, filepath.Base(libPath))
	if err := copyFile(libPath, destLib); err != nil {
		return Artifact{}, fmt.Errorf("copy shared library: %w", err)
	}
	destNodeTypes := filepath.Join(destDir, "node-types.json")
	if err := copyFile(nodeTypesPath, destNodeTypes); err != nil {
		return Artifact{}, fmt.Errorf("copy node-types.json: %w", err)
	}

	lang, _, err := openLanguage(destLib, symbol)
	if err != nil {
		return Artifact{}, fmt.Errorf("open built grammar: %w", err)
	}
	abi := int(lang.AbiVersion())
	if abi < sitter.MIN_COMPATIBLE_LANGUAGE_VERSION || abi > sitter.LANGUAGE_VERSION {
		return Artifact{}, fmt.Errorf("built grammar reports ABI version %d, runtime supports %d-%d", abi, sitter.MIN_COMPATIBLE_LANGUAGE_VERSION, sitter.LANGUAGE_VERSION)
	}

	manifestPath := filepath.Join(grammarsPath, ManifestFile)
	m, err := LoadManifest(manifestPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return Artifact{}, err
		}
		m = &Manifest{Version: 1}
	}
	if !m.allowsABI(abi) {
		m.AllowedABIVersions = append(m.AllowedABIVersions, abi)
	}

	libHash, err := CalculateSHA256(destLib)
	if err != nil {
		return Artifact{}, err
	}
	nodeTypesHash, err := CalculateSHA256(destNodeTypes)
	if err != nil {
		return Artifact{}, err
	}

	art := Artifact{
		Language:        name,
		ABIVersion:      abi,
		LibraryPath:     filepath.Join(name, filepath.Base(libPath)),
		LibrarySHA256:   libHash,
		NodeTypesPath:   filepath.Join(name, "node-types.json"),
		NodeTypesSHA256: nodeTypesHash,
		Source:          source,
	}
	m.AddArtifact(art)

	if err := m.Save(manifestPath); err != nil {
		return Artifact{}, fmt.Errorf("save manifest: %w", err)
	}
	stored, _ := m.Artifact(name)
	return stored, nil
}

// Uninstall drops name from the manifest and deletes its directory.
func Uninstall(grammarsPath, name string) error {
	manifestPath := filepath.Join(grammarsPath, ManifestFile)
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	m.RemoveArtifact(name)
	if err := m.Save(manifestPath); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	return os.RemoveAll(filepath.Join(grammarsPath, name))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
