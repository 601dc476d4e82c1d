// Package repository owns the decoded volumes of a session and the named
// mappings that group them into cases.
//
// Readers work on an immutable snapshot; every write clones the maps it
// touches and swaps the snapshot in one step.
package repository

import (
	"maps"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"niftiview/internal/models"
	"niftiview/pkg/logger"
	"niftiview/pkg/metrics"
	"niftiview/pkg/visualization"
)

// Mapping groups input and output volume ids under one label
type Mapping struct {
	Title   string   `json:"title"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// IDs returns the inputs followed by the outputs
func (m Mapping) IDs() []string {
	out := make([]string, 0, len(m.Inputs)+len(m.Outputs))
	out = append(out, m.Inputs...)
	return append(out, m.Outputs...)
}

// Tracker keeps per-id state outside the repository and must drop it when
// a volume goes away. interaction.Engine is the main implementation.
type Tracker interface {
	Register(id string)
	Forget(id string)
}

// MappingStore persists mapping records. Volume payloads are never saved.
type MappingStore interface {
	Load() ([]Mapping, error)
	Save(mappings []Mapping) error
}

// EventKind says what changed
type EventKind int

const (
	VolumeStored EventKind = iota
	VolumeDeleted
	MappingAdded
	MappingRemoved
	Cleared
)

func (k EventKind) String() string {
	switch k {
	case VolumeStored:
		return "volume-stored"
	case VolumeDeleted:
		return "volume-deleted"
	case MappingAdded:
		return "mapping-added"
	case MappingRemoved:
		return "mapping-removed"
	case Cleared:
		return "cleared"
	}
	return "unknown"
}

// Event is delivered to subscribers after a change is visible to readers.
// Key is a volume id or a mapping title depending on Kind.
type Event struct {
	Kind EventKind
	Key  string
}

type snapshot struct {
	volumes  map[string]*models.Volume
	mappings map[string]Mapping
}

// Options configures a new Repository. Every field is optional.
type Options struct {
	Trackers []Tracker
	Store    MappingStore
	Logger   logger.ILogger
	Metrics  *metrics.Metrics
}

// Repository is the volume store of one application instance
type Repository struct {
	mu  sync.Mutex // serialises writers
	cur atomic.Pointer[snapshot]

	trackers []Tracker
	store    MappingStore
	log      logger.ILogger
	metrics  *metrics.Metrics

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

// New creates a repository. If a MappingStore is given its records are
// loaded immediately.
func New(opts Options) (*Repository, error) {
	r := &Repository{
		trackers: opts.Trackers,
		store:    opts.Store,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		subs:     map[int]func(Event){},
	}
	if r.log == nil {
		r.log = logger.NullLogger{}
	}

	snap := &snapshot{
		volumes:  map[string]*models.Volume{},
		mappings: map[string]Mapping{},
	}
	if r.store != nil {
		loaded, err := r.store.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load mappings")
		}
		for _, m := range loaded {
			snap.mappings[m.Title] = m
		}
		r.log.Infof("Loaded %d mappings", len(loaded))
	}
	r.cur.Store(snap)
	r.updateGauges(snap)
	return r, nil
}

func (r *Repository) load() *snapshot {
	return r.cur.Load()
}

// Store saves v under id, replacing any volume already there, and selects
// it in every tracker. Trackers and subscribers see writes in commit order.
func (r *Repository) Store(id string, v *models.Volume) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.load()
	next := &snapshot{volumes: maps.Clone(old.volumes), mappings: old.mappings}
	next.volumes[id] = v
	r.cur.Store(next)
	r.updateGauges(next)

	for _, t := range r.trackers {
		t.Register(id)
	}
	r.log.Debugf("Stored volume %s", id)
	r.notify(Event{Kind: VolumeStored, Key: id})
}

// Get returns the volume stored under id
func (r *Repository) Get(id string) (*models.Volume, bool) {
	v, ok := r.load().volumes[id]
	return v, ok
}

// List returns the stored ids in sorted order
func (r *Repository) List() []string {
	vols := r.load().volumes
	ids := make([]string, 0, len(vols))
	for id := range vols {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Delete removes id and clears every tracker's state for it. Mappings that
// reference id are left as they are. Deleting an unknown id does nothing.
func (r *Repository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteVolumes([]string{id})
}

// deleteVolumes removes the ids that exist, forgets them in every tracker
// and notifies subscribers. r.mu must be held.
func (r *Repository) deleteVolumes(ids []string) {
	old := r.load()
	next := &snapshot{volumes: maps.Clone(old.volumes), mappings: old.mappings}
	var removed []string
	for _, id := range ids {
		if _, ok := next.volumes[id]; ok {
			delete(next.volumes, id)
			removed = append(removed, id)
		}
	}
	if len(removed) == 0 {
		return
	}
	r.cur.Store(next)
	r.updateGauges(next)

	for _, id := range removed {
		for _, t := range r.trackers {
			t.Forget(id)
		}
		r.log.Debugf("Deleted volume %s", id)
		r.notify(Event{Kind: VolumeDeleted, Key: id})
	}
}

// AddMapping records or replaces the mapping titled key. The in-memory
// change always applies; the returned error only reports a failed save.
func (r *Repository) AddMapping(key string, inputs, outputs []string) error {
	m := Mapping{
		Title:   key,
		Inputs:  append([]string(nil), inputs...),
		Outputs: append([]string(nil), outputs...),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.load()
	next := &snapshot{volumes: old.volumes, mappings: maps.Clone(old.mappings)}
	next.mappings[key] = m
	r.cur.Store(next)
	r.updateGauges(next)
	err := r.persist(next)

	r.notify(Event{Kind: MappingAdded, Key: key})
	return err
}

// GetMapping returns the mapping titled key
func (r *Repository) GetMapping(key string) (Mapping, bool) {
	m, ok := r.load().mappings[key]
	return m, ok
}

// HasMapping reports whether a mapping titled key exists
func (r *Repository) HasMapping(key string) bool {
	_, ok := r.load().mappings[key]
	return ok
}

// MappingKeys returns the mapping titles in sorted order
func (r *Repository) MappingKeys() []string {
	ms := r.load().mappings
	keys := make([]string, 0, len(ms))
	for k := range ms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RemoveMapping drops the mapping titled key and deletes every volume it
// references. Unknown keys are a no-op.
func (r *Repository) RemoveMapping(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.load()
	m, ok := old.mappings[key]
	if !ok {
		return nil
	}
	next := &snapshot{volumes: old.volumes, mappings: maps.Clone(old.mappings)}
	delete(next.mappings, key)
	r.cur.Store(next)
	r.updateGauges(next)
	err := r.persist(next)

	r.deleteVolumes(m.IDs())
	r.notify(Event{Kind: MappingRemoved, Key: key})
	return err
}

// SliceView is one cross-section ready for the presentation layer
type SliceView struct {
	Data     *mat.Dense
	Index    int
	Spacing  float64
	Modality string
}

// GetSlice reslices volume id along o. index is clamped to the volume's
// extent for that orientation.
func (r *Repository) GetSlice(o models.Orientation, id string, index int) (SliceView, bool) {
	v, ok := r.Get(id)
	if !ok {
		return SliceView{}, false
	}
	index = visualization.ClampIndex(v, o, index)
	m, spacing := visualization.Slice(v, o, index)
	return SliceView{Data: m, Index: index, Spacing: spacing, Modality: v.Modality}, true
}

// Subscribe registers fn for change events and returns a function that
// unregisters it. fn is called synchronously while the writer lock is held,
// so events arrive in commit order. fn must not block and must not call
// back into the repository's writers.
func (r *Repository) Subscribe(fn func(Event)) (cancel func()) {
	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Repository) notify(ev Event) {
	r.subMu.Lock()
	fns := make([]func(Event), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Teardown clears every volume and the in-memory mappings, forgetting all
// ids in the trackers. Persisted mappings are kept on disk.
func (r *Repository) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.load()
	next := &snapshot{
		volumes:  map[string]*models.Volume{},
		mappings: map[string]Mapping{},
	}
	r.cur.Store(next)
	r.updateGauges(next)

	for id := range old.volumes {
		for _, t := range r.trackers {
			t.Forget(id)
		}
	}
	r.log.Infof("Repository cleared (%d volumes, %d mappings)", len(old.volumes), len(old.mappings))
	r.notify(Event{Kind: Cleared})
}

// Mappings returns every mapping ordered by title
func (r *Repository) Mappings() []Mapping {
	return sortedMappings(r.load())
}

func sortedMappings(s *snapshot) []Mapping {
	out := make([]Mapping, 0, len(s.mappings))
	for _, m := range s.mappings {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// persist must be called with r.mu held
func (r *Repository) persist(s *snapshot) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.Save(sortedMappings(s)); err != nil {
		r.log.Errorf("Failed to save mappings: %v", err)
		return errors.Wrap(err, "failed to save mappings")
	}
	return nil
}

func (r *Repository) updateGauges(s *snapshot) {
	if r.metrics == nil {
		return
	}
	r.metrics.Volumes.Set(float64(len(s.volumes)))
	r.metrics.Mappings.Set(float64(len(s.mappings)))
}
