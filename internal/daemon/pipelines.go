package daemon

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"buildwatch/internal/config"
	"buildwatch/internal/logging"
	"buildwatch/internal/monitor"
	"buildwatch/internal/status"
	"buildwatch/internal/store"
)

// PipelineSpec describes a pipeline to add.
type PipelineSpec struct {
	Name    string
	Kind    string
	URL     string
	Project string
	User    string
	Token   string
}

func (d *Daemon) restorePipelines(ctx context.Context) error {
	pipelines, err := d.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load pipelines: %w", err)
	}
	if len(pipelines) == 0 && len(d.cfg.Pipelines) > 0 {
		seeded := make([]status.Pipeline, 0, len(d.cfg.Pipelines))
		seen := make(map[string]struct{}, len(d.cfg.Pipelines))
		for _, declared := range d.cfg.Pipelines {
			p, err := d.pipelineFromSpec(specFromConfig(declared))
			if err != nil {
				return err
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			seeded = append(seeded, p)
		}
		if err := d.store.Replace(ctx, seeded); err != nil {
			return fmt.Errorf("seed pipelines: %w", err)
		}
		d.logger.Info("seeded pipelines from configuration", logging.Int("pipelines", len(seeded)))
		pipelines = seeded
	}
	if err := d.monitor.Load(pipelines); err != nil {
		return fmt.Errorf("track pipelines: %w", err)
	}
	return nil
}

// AddPipeline stores a new pipeline and starts watching it. The first fetch
// is requested immediately when the daemon is running.
func (d *Daemon) AddPipeline(ctx context.Context, spec PipelineSpec) (status.Pipeline, error) {
	p, err := d.pipelineFromSpec(spec)
	if err != nil {
		return status.Pipeline{}, err
	}
	if err := d.store.Add(ctx, p); err != nil {
		return status.Pipeline{}, err
	}
	if err := d.monitor.Add(p); err != nil {
		if rmErr := d.store.Remove(ctx, p.ID); rmErr != nil {
			d.logger.Warn("failed to roll back pipeline add", logging.Error(rmErr))
		}
		return status.Pipeline{}, err
	}
	if d.monitor.Running() {
		_ = d.monitor.Trigger(p.ID)
	}
	d.logger.Info("pipeline added",
		logging.String(logging.FieldPipelineID, p.ID),
		logging.String("name", p.Name),
	)
	return p, nil
}

// RemovePipeline stops watching a pipeline and deletes it from the store.
func (d *Daemon) RemovePipeline(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := d.store.Remove(ctx, id); err != nil {
		return err
	}
	if err := d.monitor.Remove(id); err != nil && !errors.Is(err, monitor.ErrUnknownPipeline) {
		return err
	}
	d.logger.Info("pipeline removed", logging.String(logging.FieldPipelineID, id))
	return nil
}

// Refresh fetches one pipeline now, or every pipeline when id is empty.
func (d *Daemon) Refresh(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return d.monitor.RefreshAll(ctx)
	}
	return d.monitor.Refresh(ctx, id)
}

// Pipeline returns one pipeline by id.
func (d *Daemon) Pipeline(id string) (status.Pipeline, error) {
	p, ok := d.monitor.Pipeline(id)
	if !ok {
		return status.Pipeline{}, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return p, nil
}

func specFromConfig(p config.Pipeline) PipelineSpec {
	return PipelineSpec{
		Name:    p.Name,
		Kind:    p.Kind,
		URL:     p.URL,
		Project: p.Project,
		User:    p.User,
		Token:   p.Token,
	}
}

func (d *Daemon) pipelineFromSpec(spec PipelineSpec) (status.Pipeline, error) {
	kind := status.ServerKind(strings.ToLower(strings.TrimSpace(spec.Kind)))
	if kind == "" {
		kind = status.ServerCCTray
	}
	server := status.Server{
		Kind:    kind,
		URL:     strings.TrimSpace(spec.URL),
		Project: strings.TrimSpace(spec.Project),
		User:    strings.TrimSpace(spec.User),
		Token:   strings.TrimSpace(spec.Token),
	}
	switch kind {
	case status.ServerCCTray:
		if server.URL == "" {
			return status.Pipeline{}, errors.New("cctray pipelines require a feed url")
		}
	case status.ServerGitHub:
		if server.URL == "" {
			server.URL = d.cfg.GitHub.APIURL
		}
		if server.Token == "" {
			server.Token = d.cfg.GitHub.Token
		}
	default:
		return status.Pipeline{}, fmt.Errorf("unsupported pipeline kind %q", spec.Kind)
	}
	if server.Project == "" {
		return status.Pipeline{}, errors.New("pipeline project is required")
	}

	name := strings.TrimSpace(spec.Name)
	if name == "" {
		name = DefaultName(server)
	}
	return status.Pipeline{ID: status.PipelineID(server), Name: name, Server: server}, nil
}

// DefaultName derives a display name from the project: "web-app" becomes
// "Web App" and "acme/api/ci.yml@main" becomes "Api Ci".
func DefaultName(server status.Server) string {
	project := strings.TrimSpace(server.Project)
	if server.Kind == status.ServerGitHub {
		if at := strings.Index(project, "@"); at >= 0 {
			project = project[:at]
		}
		parts := strings.Split(project, "/")
		if len(parts) >= 3 {
			workflow := strings.TrimSuffix(parts[2], path.Ext(parts[2]))
			project = parts[1] + " " + workflow
		}
	}
	words := strings.FieldsFunc(project, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.' || r == '/'
	})
	if len(words) == 0 {
		return server.Project
	}
	return cases.Title(language.English, cases.NoLower).String(strings.Join(words, " "))
}
