// Package templates implements the template registry. Built-in definitions
// ship embedded in the binary; an external directory and the template
// repository can override or deactivate them by id.
package templates

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/docgen/backend/internal/domain/document"
	"github.com/docgen/backend/internal/domain/shared"
)

//go:embed definitions/*.json
var builtinFS embed.FS

// Config configures the registry sources
type Config struct {
	// ExternalDir holds *.json definitions loaded after the built-ins.
	// A missing directory is not an error.
	ExternalDir string
}

// Registry resolves template ids to validated definitions. Definitions are
// immutable once loaded; Refresh swaps the whole set atomically.
type Registry struct {
	externalDir string
	repo        document.TemplateRepository
	logger      *zap.Logger

	mu    sync.RWMutex
	byID  map[string]*document.TemplateDefinition
	order []string
}

// NewRegistry builds a registry and performs the initial load. repo may be
// nil when templates are not managed in the database.
func NewRegistry(ctx context.Context, cfg Config, repo document.TemplateRepository, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		externalDir: cfg.ExternalDir,
		repo:        repo,
		logger:      logger.Named("templates"),
	}
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh reloads every source. Later sources replace earlier ones by id:
// built-ins, then the external directory, then the repository. Invalid
// external or repository definitions are skipped and logged; an invalid
// built-in is an error.
func (r *Registry) Refresh(ctx context.Context) error {
	byID := make(map[string]*document.TemplateDefinition)
	var order []string
	add := func(def *document.TemplateDefinition, source string) {
		if _, exists := byID[def.ID]; !exists {
			order = append(order, def.ID)
		} else {
			r.logger.Debug("Template overridden", zap.String("template_id", def.ID), zap.String("source", source))
		}
		byID[def.ID] = def
	}

	builtins, err := loadDir(builtinFS, "definitions")
	if err != nil {
		return fmt.Errorf("load built-in templates: %w", err)
	}
	for _, l := range builtins {
		if l.err != nil {
			return fmt.Errorf("built-in template %s: %w", l.name, l.err)
		}
		add(l.def, "builtin")
	}

	if r.externalDir != "" {
		external, err := loadDir(os.DirFS(r.externalDir), ".")
		switch {
		case errors.Is(err, fs.ErrNotExist):
			r.logger.Warn("Template directory not found, using built-in templates only", zap.String("dir", r.externalDir))
		case err != nil:
			return fmt.Errorf("load templates from %s: %w", r.externalDir, err)
		default:
			for _, l := range external {
				if l.err != nil {
					r.logger.Error("Skipping invalid template file",
						zap.String("file", filepath.Join(r.externalDir, l.name)), zap.Error(l.err))
					continue
				}
				add(l.def, "external")
			}
		}
	}

	if r.repo != nil {
		defs, err := r.repo.FindAll(ctx)
		if err != nil {
			return fmt.Errorf("load templates from repository: %w", err)
		}
		for i := range defs {
			def := defs[i]
			if err := def.Validate(); err != nil {
				r.logger.Error("Skipping invalid stored template", zap.String("template_id", def.ID), zap.Error(err))
				continue
			}
			add(&def, "repository")
		}
	}

	r.mu.Lock()
	r.byID = byID
	r.order = order
	r.mu.Unlock()

	r.logger.Info("Templates loaded", zap.Int("count", len(order)))
	return nil
}

// Resolve returns the active definition with the given id. Unknown and
// deactivated templates both fail with shared.ErrNotFound.
func (r *Registry) Resolve(_ context.Context, id string) (*document.TemplateDefinition, error) {
	r.mu.RLock()
	def, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok || !def.IsActive() {
		return nil, fmt.Errorf("%w: template %q", shared.ErrNotFound, id)
	}
	return def, nil
}

// Supports reports whether def can be rendered to format
func (r *Registry) Supports(def *document.TemplateDefinition, format document.Format) bool {
	return def != nil && def.Supports(format)
}

// List returns active definitions in load order. An empty category lists
// every category.
func (r *Registry) List(category document.Category) []*document.TemplateDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*document.TemplateDefinition, 0, len(r.order))
	for _, id := range r.order {
		def := r.byID[id]
		if !def.IsActive() {
			continue
		}
		if category != "" && def.Category != category {
			continue
		}
		out = append(out, def)
	}
	return out
}

type loaded struct {
	name string
	def  *document.TemplateDefinition
	err  error
}

// loadDir parses every *.json file in dir, sorted by file name
func loadDir(fsys fs.FS, dir string) ([]loaded, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []loaded
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, e.Name())))
		if err != nil {
			out = append(out, loaded{name: e.Name(), err: err})
			continue
		}
		def, err := ParseDefinition(data)
		out = append(out, loaded{name: e.Name(), def: def, err: err})
	}
	return out, nil
}
