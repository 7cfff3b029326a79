package policy

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/nimbus/internal/telemetry"
)

// Loader compiles every .rego file below a directory.
type Loader struct {
	dir    string
	logger *telemetry.Logger
	tracer trace.Tracer
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:    dir,
		logger: telemetry.NewLogger("policy-loader"),
		tracer: otel.Tracer("nimbus/policy"),
	}
}

// Load compiles all policies, sorted by path. Policy names are the file
// path relative to the root, without extension, using "/" separators.
// A single broken file fails the whole load.
func (l *Loader) Load(ctx context.Context) ([]*Rule, error) {
	ctx, span := l.tracer.Start(ctx, "policy.load",
		trace.WithAttributes(attribute.String("policy.dir", l.dir)))
	defer span.End()

	info, err := os.Stat(l.dir)
	if err != nil {
		return nil, fmt.Errorf("policy dir %s: %w", l.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("policy dir %s: not a directory", l.dir)
	}

	var paths []string
	err = filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".rego") || strings.HasSuffix(path, "_test.rego") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk policy dir: %w", err)
	}
	sort.Strings(paths)

	rules := make([]*Rule, 0, len(paths))
	for _, path := range paths {
		rule, err := l.loadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	l.logger.WithContext(ctx).Info().
		Str("dir", l.dir).
		Int("count", len(rules)).
		Msg("loaded policies")

	return rules, nil
}

func (l *Loader) loadFile(ctx context.Context, path string) (*Rule, error) {
	rel, err := l.relative(path)
	if err != nil {
		return nil, fmt.Errorf("invalid policy path %s: %w", path, err)
	}

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}

	name := filepath.ToSlash(strings.TrimSuffix(rel, ".rego"))
	rule, err := Compile(ctx, name, string(content))
	if err != nil {
		return nil, err
	}

	l.logger.WithContext(ctx).Debug().
		Str("policy", name).
		Str("path", path).
		Msg("policy compiled")

	return rule, nil
}

// relative resolves path against the root and rejects anything outside it.
func (l *Loader) relative(path string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(l.dir), filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return rel, nil
}
