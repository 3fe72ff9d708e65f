// Package loam stores scenarios as Markdown documents in a Loam repository,
// so what-if runs can be edited by hand and kept under version control.
package loam

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"
)

// Library adapts a Loam repository to ports.ScenarioLibrary.
type Library struct {
	Repo *loam.TypedRepository[ScenarioMetadata]
}

// New creates a new Loam scenario library.
func New(repo *loam.TypedRepository[ScenarioMetadata]) *Library {
	return &Library{
		Repo: repo,
	}
}

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// DocumentID returns where the scenario name of model is stored.
func DocumentID(model, name string) string {
	slug := func(s string) string {
		return strings.Trim(unsafeID.ReplaceAllString(strings.ToLower(s), "-"), "-")
	}
	return path.Join("scenarios", slug(model), slug(name))
}

// Scenarios returns the model's scenarios sorted by name. List only
// yields IDs; each document is loaded in full for its override body.
func (l *Library) Scenarios(ctx context.Context, model string) ([]*domain.Scenario, error) {
	listed, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	out := []*domain.Scenario{}
	for _, entry := range listed {
		doc, err := l.Repo.Get(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("loam get failed for %s: %w", entry.ID, err)
		}
		if doc.Data.Model != model {
			continue
		}
		sc, err := toScenario(doc.Data, doc.Content)
		if err != nil {
			return nil, fmt.Errorf("scenario document %s: %w", doc.ID, err)
		}
		if sc.Name == "" {
			sc.Name = strings.TrimSuffix(path.Base(doc.ID), path.Ext(doc.ID))
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveScenario writes sc as a Markdown document, replacing any previous version.
func (l *Library) SaveScenario(ctx context.Context, model string, sc *domain.Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("scenario name cannot be empty")
	}
	settings, err := settingsOf(sc)
	if err != nil {
		return err
	}
	err = l.Repo.Save(ctx, &loam.DocumentModel[ScenarioMetadata]{
		ID:      DocumentID(model, sc.Name),
		Content: sc.ObjectUpdates,
		Data: ScenarioMetadata{
			Name:     sc.Name,
			Model:    model,
			Settings: settings,
		},
	})
	if err != nil {
		return fmt.Errorf("loam save failed for scenario %s: %w", sc.Name, err)
	}
	return nil
}

// settingsOf flattens the persisted run settings into a map. Identity and
// override text live outside the settings block.
func settingsOf(sc *domain.Scenario) (map[string]any, error) {
	settings := make(map[string]any)
	if err := mapstructure.Decode(sc.Copy(), &settings); err != nil {
		return nil, fmt.Errorf("failed to encode scenario settings: %w", err)
	}
	for _, k := range []string{"name", "object_updates", "-"} {
		delete(settings, k)
	}
	return settings, nil
}

// toScenario decodes the settings block. Numbers may arrive as strings or
// json.Number depending on the serializer.
func toScenario(meta ScenarioMetadata, body string) (*domain.Scenario, error) {
	sc := &domain.Scenario{NumIterations: 1}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           sc,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(meta.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	sc.Name = meta.Name
	sc.ObjectUpdates = strings.TrimSpace(body)
	return sc, nil
}

// Watch implements ports.Watchable. It emits the ID of each changed
// scenario document.
func (l *Library) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "scenarios/**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- evt.ID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
