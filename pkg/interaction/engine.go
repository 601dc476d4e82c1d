// Package interaction holds the per-session display state shown on top of
// the stored volumes: which datasets and planes are visible, the shared
// scroll position, per-dataset windowing, and pointer/measurement queries.
//
// All state lives in an immutable snapshot that is replaced as a whole on
// every change, so readers never observe a half-applied update and never
// need a lock.
package interaction

import (
	"maps"
	"sort"
	"sync"
	"sync/atomic"

	"niftiview/internal/models"
	"niftiview/pkg/visualization"
)

// Mode is an interaction tool that can be toggled on or off
type Mode string

const (
	ModeMeasure    Mode = "measure"
	ModePixelProbe Mode = "pixel-probe"
)

type state struct {
	scroll     float64
	registered map[string]struct{}
	selected   map[string]struct{}
	views     map[models.Orientation]struct{}
	modes     map[Mode]struct{}
	windowing map[string]models.WindowingParams
	maxIndex  map[string]int
}

func (s *state) clone() *state {
	return &state{
		scroll:     s.scroll,
		registered: maps.Clone(s.registered),
		selected:   maps.Clone(s.selected),
		views:      maps.Clone(s.views),
		modes:      maps.Clone(s.modes),
		windowing:  maps.Clone(s.windowing),
		maxIndex:   maps.Clone(s.maxIndex),
	}
}

// Options configures a new Engine
type Options struct {
	// Windowing is returned for datasets without their own entry
	Windowing models.WindowingParams

	// ScrollStep is the amount Increment and Decrement move the scroll value
	ScrollStep float64
}

// Engine is the display controller for one session
type Engine struct {
	mu  sync.Mutex // serialises writers
	cur atomic.Pointer[state]

	defaults models.WindowingParams
	step     float64
}

// NewEngine creates an engine with nothing registered
func NewEngine(opts Options) *Engine {
	if opts.Windowing.Width <= 0 {
		opts.Windowing = models.DefaultWindowing
	}
	if opts.ScrollStep <= 0 {
		opts.ScrollStep = 1
	}

	e := &Engine{defaults: opts.Windowing, step: opts.ScrollStep}
	e.cur.Store(&state{
		registered: map[string]struct{}{},
		selected:   map[string]struct{}{},
		views:      map[models.Orientation]struct{}{},
		modes:      map[Mode]struct{}{},
		windowing:  map[string]models.WindowingParams{},
		maxIndex:   map[string]int{},
	})
	return e
}

func (e *Engine) load() *state {
	return e.cur.Load()
}

func (e *Engine) update(fn func(s *state)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.load().clone()
	fn(next)
	e.cur.Store(next)
}

func (s *state) isRegistered(id string) bool {
	_, ok := s.registered[id]
	return ok
}

// Register is called when a volume is stored. New datasets start selected.
// Per-dataset writers ignore ids that are not registered.
func (e *Engine) Register(id string) {
	e.update(func(s *state) {
		s.registered[id] = struct{}{}
		s.selected[id] = struct{}{}
	})
}

// Forget drops every piece of state kept for id, whatever it is
func (e *Engine) Forget(id string) {
	e.update(func(s *state) {
		delete(s.registered, id)
		delete(s.selected, id)
		delete(s.windowing, id)
		delete(s.maxIndex, id)
	})
}

// IsRegistered reports whether id is known to the engine
func (e *Engine) IsRegistered(id string) bool {
	return e.load().isRegistered(id)
}

// UpdateSelection shows or hides a dataset. Hiding it also drops its
// cached max index, which is recomputed the next time it is viewed.
func (e *Engine) UpdateSelection(id string, selected bool) {
	e.update(func(s *state) {
		if !s.isRegistered(id) {
			return
		}
		if selected {
			s.selected[id] = struct{}{}
			return
		}
		delete(s.selected, id)
		delete(s.maxIndex, id)
	})
}

// IsSelected reports whether id is currently shown
func (e *Engine) IsSelected(id string) bool {
	_, ok := e.load().selected[id]
	return ok
}

// Selected returns the shown dataset ids in sorted order
func (e *Engine) Selected() []string {
	return sortedKeys(e.load().selected)
}

// UpdateSelectedViews shows or hides an orientation for every dataset
func (e *Engine) UpdateSelectedViews(o models.Orientation, selected bool) {
	e.update(func(s *state) {
		if selected {
			s.views[o] = struct{}{}
		} else {
			delete(s.views, o)
		}
	})
}

// SelectedViews returns the shown orientations in display order
func (e *Engine) SelectedViews() []models.Orientation {
	s := e.load()
	var out []models.Orientation
	for _, o := range models.Orientations {
		if _, ok := s.views[o]; ok {
			out = append(out, o)
		}
	}
	return out
}

// UpdateMode turns an interaction tool on or off
func (e *Engine) UpdateMode(m Mode, active bool) {
	e.update(func(s *state) {
		if active {
			s.modes[m] = struct{}{}
		} else {
			delete(s.modes, m)
		}
	})
}

// ModeActive reports whether a tool is on
func (e *Engine) ModeActive(m Mode) bool {
	_, ok := e.load().modes[m]
	return ok
}

// Selection is a point-in-time copy of the session state
type Selection struct {
	Scroll   float64              `json:"scroll"`
	Datasets []string             `json:"datasets"`
	Views    []models.Orientation `json:"views"`
	Modes    []Mode               `json:"modes"`
}

// Selection returns a consistent copy of the selection state
func (e *Engine) Selection() Selection {
	s := e.load()
	sel := Selection{Scroll: s.scroll, Datasets: sortedKeys(s.selected)}
	for _, o := range models.Orientations {
		if _, ok := s.views[o]; ok {
			sel.Views = append(sel.Views, o)
		}
	}
	for m := range s.modes {
		sel.Modes = append(sel.Modes, m)
	}
	sort.Slice(sel.Modes, func(i, j int) bool { return sel.Modes[i] < sel.Modes[j] })
	return sel
}

// SetScrollIndex sets the shared scroll value. It may exceed the range of
// some datasets; each one clamps it when read.
func (e *Engine) SetScrollIndex(v float64) {
	e.update(func(s *state) {
		s.scroll = v
	})
}

// Increment moves the scroll value forward one step
func (e *Engine) Increment() {
	e.update(func(s *state) {
		s.scroll += e.step
	})
}

// Decrement moves the scroll value back one step, stopping at zero when
// clampAtZero is set
func (e *Engine) Decrement(clampAtZero bool) {
	e.update(func(s *state) {
		s.scroll -= e.step
		if clampAtZero && s.scroll < 0 {
			s.scroll = 0
		}
	})
}

// ScrollIndex returns the shared, unclamped scroll value
func (e *Engine) ScrollIndex() float64 {
	return e.load().scroll
}

// Indices are the slice indices a dataset shows for the current scroll value
type Indices struct {
	Axial    int `json:"axial"`
	Coronal  int `json:"coronal"`
	Sagittal int `json:"sagittal"`
}

// Get returns the index for one orientation
func (ix Indices) Get(o models.Orientation) int {
	switch o {
	case models.Coronal:
		return ix.Coronal
	case models.Sagittal:
		return ix.Sagittal
	default:
		return ix.Axial
	}
}

// ImageIndices converts the shared scroll value into slice indices for vol.
// The value is clamped to [0, max(W,H,D)-1] and then scaled to each
// orientation's extent, so all planes of a dataset move together. The
// max index of a registered, selected dataset is recorded as a side effect.
func (e *Engine) ImageIndices(vol *models.Volume) Indices {
	maxLen := vol.MaxExtent()
	cur := e.load()
	step := clampFloat(cur.scroll, 0, float64(maxLen-1))

	if idx, ok := cur.maxIndex[vol.ID]; !ok || idx != maxLen-1 {
		e.update(func(s *state) {
			if _, shown := s.selected[vol.ID]; shown && s.isRegistered(vol.ID) {
				s.maxIndex[vol.ID] = maxLen - 1
			}
		})
	}

	scale := func(o models.Orientation) int {
		n := visualization.Extent(vol, o)
		return visualization.ClampIndex(vol, o, int(step*float64(n)/float64(maxLen)))
	}
	return Indices{
		Axial:    scale(models.Axial),
		Coronal:  scale(models.Coronal),
		Sagittal: scale(models.Sagittal),
	}
}

// SliceIndex is ImageIndices for a single orientation
func (e *Engine) SliceIndex(vol *models.Volume, o models.Orientation) int {
	return e.ImageIndices(vol).Get(o)
}

// MaxIndex returns the recorded max scroll index of id, if it has been
// viewed since it was last selected
func (e *Engine) MaxIndex(id string) (int, bool) {
	idx, ok := e.load().maxIndex[id]
	return idx, ok
}

// MaxScrollIndex is the largest recorded max index across datasets, the
// useful range for a shared scroll bar
func (e *Engine) MaxScrollIndex() int {
	m := 0
	for _, idx := range e.load().maxIndex {
		if idx > m {
			m = idx
		}
	}
	return m
}

func clampFloat(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
