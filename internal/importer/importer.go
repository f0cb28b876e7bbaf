// Package importer reconciles markdown note sources with the card archive.
// New entries are batch-created as draft cards and known entries are
// skipped. Cards whose entry disappeared from the source are soft-deleted.
//
// An imported card remembers the fingerprint of its entry as its import key.
// Editing the card in the archive does not change that key, so the edit
// survives later imports as long as the entry itself is unchanged.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/knolarchive/internal/batch"
	"github.com/conorfennell/knolarchive/internal/cards"
	"github.com/conorfennell/knolarchive/internal/domain"
	"github.com/conorfennell/knolarchive/internal/gitsource"
	"github.com/conorfennell/knolarchive/internal/knol"
	"github.com/conorfennell/knolarchive/internal/parser"
	"github.com/conorfennell/knolarchive/internal/storage"
)

// Store is the source and lookup side of the repository.
type Store interface {
	InsertSource(ctx context.Context, path, sourceType, ownerID string) (int64, error)
	FindSourceByPath(ctx context.Context, path string) (*storage.Source, error)
	GetAllSources(ctx context.Context) ([]storage.Source, error)
	UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error
	FindByFingerprint(ctx context.Context, ownerID, fingerprint string) (domain.Card, bool, error)
	GetCardsBySourceID(ctx context.Context, sourceID int64) ([]domain.Card, error)
}

// Engine is the part of the card service the importer writes through.
type Engine interface {
	BatchCreate(ctx context.Context, actor domain.Actor, items []cards.CreateInput) (cards.BatchCreateResult, error)
	SoftDelete(ctx context.Context, actor domain.Actor, id string, version int64) (domain.Card, error)
}

// GitSyncer fetches a remote source and returns its local checkout.
type GitSyncer interface {
	Sync(ctx context.Context, repoURL string) (string, error)
}

// Importer runs reconciliations.
type Importer struct {
	store  Store
	engine Engine
	git    GitSyncer
	logger *slog.Logger
	now    func() time.Time
	// owner is used for sources stored without one.
	owner string
}

// Options configures an Importer.
type Options struct {
	Git    GitSyncer
	Logger *slog.Logger
	Now    func() time.Time
	Owner  string
}

// New returns an Importer.
func New(store Store, engine Engine, opts Options) *Importer {
	im := &Importer{
		store:  store,
		engine: engine,
		git:    opts.Git,
		logger: opts.Logger,
		now:    opts.Now,
		owner:  opts.Owner,
	}
	if im.logger == nil {
		im.logger = slog.Default()
	}
	if im.now == nil {
		im.now = time.Now
	}
	return im
}

// Report summarizes the reconciliation of one source.
type Report struct {
	SourceID int64
	Path     string
	Parsed   int
	Created  int
	Skipped  int
	Orphaned int
	Errors   []error
}

// AddSource registers path as a source owned by ownerID. Registering a known
// path returns the existing source.
func (im *Importer) AddSource(ctx context.Context, path, ownerID string) (storage.Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return storage.Source{}, errors.New("source path cannot be empty")
	}
	if ownerID == "" {
		ownerID = im.owner
	}
	if ownerID == "" {
		return storage.Source{}, errors.New("source owner cannot be empty")
	}

	existing, err := im.store.FindSourceByPath(ctx, path)
	if err != nil {
		return storage.Source{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	sourceType := storage.SourceTypeLocal
	if gitsource.IsRemote(path) {
		sourceType = storage.SourceTypeGit
	}
	id, err := im.store.InsertSource(ctx, path, sourceType, ownerID)
	if err != nil {
		return storage.Source{}, err
	}
	im.logger.Info("source added", "id", id, "type", sourceType, "path", path)
	return storage.Source{ID: id, Path: path, Type: sourceType, OwnerID: ownerID}, nil
}

// Run reconciles every stored source. A failing source is reported and the
// run continues with the next one.
func (im *Importer) Run(ctx context.Context) ([]Report, error) {
	im.logger.Info("starting import for all sources")
	sources, err := im.store.GetAllSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		im.logger.Info("no sources configured")
		return nil, nil
	}

	reports := make([]Report, 0, len(sources))
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		im.logger.Info("importing source", "id", source.ID, "type", source.Type, "path", source.Path)
		reports = append(reports, im.Reconcile(ctx, source))
	}
	im.logger.Info("import complete", "sources", len(reports))
	return reports, nil
}

// Reconcile brings the cards of one source in line with its files.
func (im *Importer) Reconcile(ctx context.Context, source storage.Source) Report {
	report := Report{SourceID: source.ID, Path: source.Path}
	logger := im.logger.With("source_id", source.ID)

	owner := source.OwnerID
	if owner == "" {
		owner = im.owner
	}
	if owner == "" {
		report.Errors = append(report.Errors, errors.New("source has no owner"))
		logger.Error("skipping source without owner")
		return report
	}
	actor := domain.Actor{UserID: owner, Role: domain.RoleUser}

	dir := source.Path
	if source.Type == storage.SourceTypeGit {
		if im.git == nil {
			report.Errors = append(report.Errors, errors.New("git sources are not enabled"))
			return report
		}
		local, err := im.git.Sync(ctx, source.Path)
		if err != nil {
			logger.Error("error syncing git repo", "url", source.Path, "error", err)
			report.Errors = append(report.Errors, err)
			return report
		}
		dir = local
	}

	entries, walkErrs, err := walk(dir)
	report.Errors = append(report.Errors, walkErrs...)
	if err != nil {
		logger.Error("error walking directory", "path", dir, "error", err)
		report.Errors = append(report.Errors, err)
		return report
	}
	report.Parsed = len(entries)

	existing, err := im.store.GetCardsBySourceID(ctx, source.ID)
	if err != nil {
		logger.Error("error getting cards for source", "error", err)
		report.Errors = append(report.Errors, err)
		return report
	}
	imported := make(map[string]bool, len(existing))
	for _, c := range existing {
		imported[importKey(c)] = true
	}

	found := make(map[string]bool, len(entries))
	var pending []cards.CreateInput
	var pendingEntries []parser.Entry
	for _, e := range entries {
		fp := knol.Hash(domain.CardType(e.CardType), e.Front, e.Back)
		if found[fp] {
			report.Skipped++
			continue
		}
		found[fp] = true
		if imported[fp] {
			report.Skipped++
			continue
		}

		_, exists, err := im.store.FindByFingerprint(ctx, owner, fp)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("db check for %s: %w", fp, err))
			continue
		}
		if exists {
			report.Skipped++
			continue
		}
		in, err := toInput(e, source.ID, fp)
		if err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		pending = append(pending, in)
		pendingEntries = append(pendingEntries, e)
	}

	for start := 0; start < len(pending); start += batch.MaxItems {
		end := min(start+batch.MaxItems, len(pending))
		res, err := im.engine.BatchCreate(ctx, actor, pending[start:end])
		if err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Created += res.SuccessCount
		for _, f := range res.Failed {
			e := pendingEntries[start+f.Index]
			logger.Warn("failed to import card", "entry", entryRef(e), "card_type", f.Item.CardType, "error", f.Err)
			report.Errors = append(report.Errors, fmt.Errorf("%s: %w", entryRef(e), f.Err))
		}
	}

	for _, c := range existing {
		if found[importKey(c)] {
			continue
		}
		logger.Info("orphaned card, deleting", "card_id", c.ID, "import_key", importKey(c))
		if _, err := im.engine.SoftDelete(ctx, actor, c.ID, c.Version); err != nil {
			logger.Warn("failed to delete orphaned card", "card_id", c.ID, "error", err)
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Orphaned++
	}

	if err := im.store.UpdateSourceLastScanned(ctx, source.ID, im.now()); err != nil {
		logger.Warn("failed to update last scanned for source", "error", err)
	}

	logger.Info("reconciliation complete",
		"path", dir,
		"parsed_cards", report.Parsed,
		"created", report.Created,
		"skipped", report.Skipped,
		"orphaned_deleted", report.Orphaned,
		"errors", len(report.Errors),
	)
	return report
}

// walk parses every markdown file below dir. Unreadable files are returned
// as per-file errors; err is set only when the walk itself fails.
func walk(dir string) (entries []parser.Entry, fileErrs []error, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		parsed, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			fileErrs = append(fileErrs, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		entries = append(entries, parsed...)
		return nil
	})
	return entries, fileErrs, err
}

// importKey falls back to the content fingerprint for cards imported before
// keys were recorded.
func importKey(c domain.Card) string {
	if c.ImportKey != "" {
		return c.ImportKey
	}
	return c.Fingerprint
}

func entryRef(e parser.Entry) string {
	if e.Path == "" {
		return fmt.Sprintf("entry at line %d", e.Line)
	}
	return fmt.Sprintf("entry at %s:%d", e.Path, e.Line)
}

// toInput builds the card content from the Q, A and C lines and merges in
// the entry's fields block.
func toInput(e parser.Entry, sourceID int64, key string) (cards.CreateInput, error) {
	where := entryRef(e)
	body := map[string]any{"front": e.Front, "back": e.Back}
	if e.Context != "" {
		body["explanation"] = e.Context
	}
	if e.Fields != "" {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(e.Fields), &fields); err != nil {
			return cards.CreateInput{}, fmt.Errorf("%s: fields block must be a JSON object: %w", where, err)
		}
		for name, v := range fields {
			if _, taken := body[name]; taken {
				return cards.CreateInput{}, fmt.Errorf("%s: fields block sets %q, which comes from the Q, A or C line", where, name)
			}
			body[name] = v
		}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return cards.CreateInput{}, fmt.Errorf("encoding %s: %w", where, err)
	}
	tags := make([]string, 0, len(e.Tags))
	for _, t := range e.Tags {
		tags = append(tags, strings.ToLower(t))
	}
	return cards.CreateInput{
		CardType:       e.CardType,
		Content:        raw,
		Tags:           tags,
		Source:         domain.SourceImport,
		ImportSourceID: sourceID,
		ImportKey:      key,
	}, nil
}
