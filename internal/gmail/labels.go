package gmail

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/teemow/mailtriage/internal/logging"
)

// Label is a Gmail label. ID is the identity; Name is the slash-delimited
// display name, e.g. "IOB/libcamera/Done".
type Label struct {
	ID   string
	Name string
}

func (l Label) String() string {
	return l.Name + " : (" + l.ID + ")"
}

// LabelDirectory resolves label names to labels. The remote listing is
// fetched on first use and kept for the lifetime of the directory. A failed
// listing is not kept, so the next call retries.
type LabelDirectory struct {
	svc    Service
	logger *slog.Logger

	mu     sync.Mutex
	byName map[string]Label
}

// NewLabelDirectory creates an empty directory backed by svc.
func NewLabelDirectory(svc Service, logger *slog.Logger) *LabelDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &LabelDirectory{svc: svc, logger: logger}
}

func (d *LabelDirectory) load(ctx context.Context) (map[string]Label, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.byName != nil {
		return d.byName, nil
	}

	remote, err := d.svc.ListLabels(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Label, len(remote))
	for _, l := range remote {
		if l == nil {
			continue
		}
		byName[l.Name] = Label{ID: l.Id, Name: l.Name}
	}
	if len(byName) == 0 {
		d.logger.Info("no labels found", logging.Operation("list_labels"))
	}

	d.byName = byName
	return byName, nil
}

// Labels returns all labels keyed by name. The map is a copy.
func (d *LabelDirectory) Labels(ctx context.Context) (map[string]Label, error) {
	byName, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	return maps.Clone(byName), nil
}

// Label looks up a label by exact name. An absent name yields
// *UnknownLabelError.
func (d *LabelDirectory) Label(ctx context.Context, name string) (Label, error) {
	byName, err := d.load(ctx)
	if err != nil {
		return Label{}, err
	}
	l, ok := byName[name]
	if !ok {
		return Label{}, &UnknownLabelError{Name: name}
	}
	return l, nil
}

// ByID looks up a label by id.
func (d *LabelDirectory) ByID(ctx context.Context, id string) (Label, bool, error) {
	byName, err := d.load(ctx)
	if err != nil {
		return Label{}, false, err
	}
	for _, l := range byName {
		if l.ID == id {
			return l, true, nil
		}
	}
	return Label{}, false, nil
}

// Names returns every label name in sorted order.
func (d *LabelDirectory) Names(ctx context.Context) ([]string, error) {
	byName, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(byName)), nil
}
