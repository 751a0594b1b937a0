package walker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/neuron/compiler/errors"
)

// rawNode mirrors one manifest entry. Dependencies is kept as a yaml.Node
// so the declaration order of specifiers survives decoding.
type rawNode struct {
	Code         *string   `yaml:"code"`
	Entry        bool      `yaml:"entry"`
	Foreign      bool      `yaml:"foreign"`
	Dependencies yaml.Node `yaml:"dependencies"`
}

// Decode parses a walker manifest. The manifest maps each file path to
// {code, dependencies: {require: {}, resolve: {}, async: {}}, entry, foreign}.
// JSON manifests are accepted since JSON is valid YAML. Relative paths are
// resolved against baseDir.
func Decode(data []byte, baseDir string) ([]*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("manifest must be a mapping of file paths, line %d", root.Line)
	}

	nodes := make([]*Node, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]

		var raw rawNode
		if err := value.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid manifest entry %q: %w", key.Value, err)
		}

		node := &Node{
			Path:    key.Value,
			Entry:   raw.Entry,
			Foreign: raw.Foreign,
		}
		if raw.Code != nil {
			node.Code = *raw.Code
			node.HasCode = true
		}
		if !raw.Foreign && !filepath.IsAbs(node.Path) && baseDir != "" {
			node.Path = filepath.ToSlash(filepath.Join(baseDir, node.Path))
		}

		deps, err := decodeDependencies(&raw.Dependencies, baseDir)
		if err != nil {
			return nil, fmt.Errorf("invalid dependencies of %q: %w", key.Value, err)
		}
		node.Dependencies = deps
		nodes = append(nodes, node)
	}

	return nodes, nil
}

func decodeDependencies(n *yaml.Node, baseDir string) ([]Dependency, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("dependencies must be a mapping, line %d", n.Line)
	}

	var deps []Dependency
	for i := 0; i+1 < len(n.Content); i += 2 {
		kind, err := ParseKind(n.Content[i].Value)
		if err != nil {
			return nil, err
		}
		table := n.Content[i+1]
		if table.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%s dependencies must be a mapping, line %d", kind, table.Line)
		}
		for j := 0; j+1 < len(table.Content); j += 2 {
			target := table.Content[j+1].Value
			if strings.HasPrefix(target, ".") && baseDir != "" {
				target = filepath.ToSlash(filepath.Join(baseDir, target))
			}
			deps = append(deps, Dependency{
				Specifier: table.Content[j].Value,
				Target:    target,
				Kind:      kind,
			})
		}
	}
	return deps, nil
}

// ManifestWalker reads a tree that an external walker already wrote to disk
type ManifestWalker struct {
	Path string
}

// Walk decodes the manifest file
func (w *ManifestWalker) Walk(ctx context.Context, entry string) ([]*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(w.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	nodes, err := Decode(data, filepath.Dir(w.Path))
	if err != nil {
		return nil, malformed(w.Path, err)
	}
	return markEntry(nodes, entry), nil
}

// CommandWalker runs an external walker and decodes the manifest it prints.
// The entry path is appended to Args.
type CommandWalker struct {
	Command string
	Args    []string
	Dir     string
}

// Walk executes the walker command
func (w *CommandWalker) Walk(ctx context.Context, entry string) ([]*Node, error) {
	args := append(append([]string(nil), w.Args...), entry)
	cmd := exec.CommandContext(ctx, w.Command, args...)
	cmd.Dir = w.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, malformed(entry, fmt.Errorf("walker %s failed: %s", w.Command, msg))
	}

	nodes, err := Decode(stdout.Bytes(), w.Dir)
	if err != nil {
		return nil, malformed(entry, err)
	}
	return markEntry(nodes, entry), nil
}

func malformed(file string, cause error) error {
	return errors.NewCompilerError("walker", errors.ErrMalformedSourceCode,
		cause.Error(), errors.SourceLocation{File: file}, errors.Fatal).WithCause(cause)
}
