package interaction

import (
	"sort"

	"niftiview/internal/models"
)

var presets = map[string]models.WindowingParams{
	"CT-Brain": {Center: 40, Width: 80},
	"CT-Lung":  {Center: -600, Width: 1500},
	"CT-Bone":  {Center: 300, Width: 1500},
	"PET-Raw":  {Center: 500, Width: 1500},
	"PET-SUV":  {Center: 0, Width: 20},
}

// Preset returns a named windowing preset
func Preset(name string) (models.WindowingParams, bool) {
	p, ok := presets[name]
	return p, ok
}

// PresetNames lists the available presets in sorted order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Windowing returns the windowing of id, or the default if it has none
func (e *Engine) Windowing(id string) models.WindowingParams {
	if w, ok := e.load().windowing[id]; ok {
		return w
	}
	return e.defaults
}

// SetWindowing replaces the windowing of id. Unregistered ids are ignored.
func (e *Engine) SetWindowing(id string, w models.WindowingParams) {
	e.update(func(s *state) {
		if s.isRegistered(id) {
			s.windowing[id] = w
		}
	})
}

// SetCenter changes only the center of id's window
func (e *Engine) SetCenter(id string, center float64) {
	e.update(func(s *state) {
		if !s.isRegistered(id) {
			return
		}
		w, ok := s.windowing[id]
		if !ok {
			w = e.defaults
		}
		w.Center = center
		s.windowing[id] = w
	})
}

// SetWidth changes only the width of id's window
func (e *Engine) SetWidth(id string, width float64) {
	e.update(func(s *state) {
		if !s.isRegistered(id) {
			return
		}
		w, ok := s.windowing[id]
		if !ok {
			w = e.defaults
		}
		w.Width = width
		s.windowing[id] = w
	})
}

// ApplyPreset sets id's window to a named preset. Unknown names leave the
// window unchanged and return false; unregistered ids are ignored.
func (e *Engine) ApplyPreset(id, name string) bool {
	p, ok := Preset(name)
	if !ok {
		return false
	}
	e.SetWindowing(id, p)
	return true
}
