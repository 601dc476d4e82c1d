package server

import (
	"bytes"
	"fmt"
	"image/png"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"niftiview/internal/models"
	"niftiview/pkg/interaction"
	"niftiview/pkg/nifti"
	"niftiview/pkg/visualization"
)

// VolumeInfo describes a stored volume without its voxels
type VolumeInfo struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Modality  string                 `json:"modality"`
	Dims      models.Dimensions      `json:"dims"`
	Spacing   models.Spacing         `json:"spacing"`
	Selected  bool                   `json:"selected"`
	Windowing models.WindowingParams `json:"windowing"`
}

func (s *Server) volumeInfo(v *models.Volume) VolumeInfo {
	return VolumeInfo{
		ID:        v.ID,
		Name:      v.Name,
		Modality:  v.Modality,
		Dims:      v.Dims,
		Spacing:   v.Spacing,
		Selected:  s.engine.IsSelected(v.ID),
		Windowing: s.engine.Windowing(v.ID),
	}
}

func (s *Server) volumeFromRequest(r *http.Request) (*models.Volume, error) {
	id := mux.Vars(r)["id"]
	v, ok := s.repo.Get(id)
	if !ok {
		return nil, makeNotFoundError("volume " + id)
	}
	return v, nil
}

func orientationFromRequest(r *http.Request) (models.Orientation, error) {
	o, err := models.ParseOrientation(mux.Vars(r)["orientation"])
	if err != nil {
		return o, makeBadRequestError(err)
	}
	return o, nil
}

func floatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, makeBadRequestError(fmt.Errorf("missing query parameter %s", name))
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, makeBadRequestError(fmt.Errorf("bad query parameter %s: %v", name, err))
	}
	return f, nil
}

func (s *Server) listVolumes(w http.ResponseWriter, r *http.Request) error {
	out := []VolumeInfo{}
	for _, id := range s.repo.List() {
		if v, ok := s.repo.Get(id); ok {
			out = append(out, s.volumeInfo(v))
		}
	}
	return writeJSON(w, http.StatusOK, out)
}

func (s *Server) getVolume(w http.ResponseWriter, r *http.Request) error {
	v, err := s.volumeFromRequest(r)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, s.volumeInfo(v))
}

func (s *Server) deleteVolume(w http.ResponseWriter, r *http.Request) error {
	s.repo.Delete(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) downloadVolume(w http.ResponseWriter, r *http.Request) error {
	v, err := s.volumeFromRequest(r)
	if err != nil {
		return err
	}
	b, err := nifti.Encode(v, nifti.LittleEndian, true)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", v.ID+".nii.gz"))
	_, err = w.Write(b)
	return err
}

func (s *Server) getIndices(w http.ResponseWriter, r *http.Request) error {
	v, err := s.volumeFromRequest(r)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, s.engine.ImageIndices(v))
}

func (s *Server) sliceFromRequest(r *http.Request) (string, models.Orientation, int, error) {
	id := mux.Vars(r)["id"]
	o, err := orientationFromRequest(r)
	if err != nil {
		return id, o, 0, err
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		return id, o, 0, makeBadRequestError(err)
	}
	return id, o, index, nil
}

// getSliceImage renders a slice as PNG with the volume's windowing, or
// stretched to its own min and max with ?mode=minmax
func (s *Server) getSliceImage(w http.ResponseWriter, r *http.Request) error {
	id, o, index, err := s.sliceFromRequest(r)
	if err != nil {
		return err
	}
	view, ok := s.repo.GetSlice(o, id, index)
	if !ok {
		return makeNotFoundError("volume " + id)
	}

	img := visualization.RenderSlice(view.Data, s.engine.Windowing(id))
	if r.URL.Query().Get("mode") == "minmax" {
		img = visualization.RenderMinMax(view.Data)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Slice-Index", strconv.Itoa(view.Index))
	w.Header().Set("X-Slice-Spacing", strconv.FormatFloat(view.Spacing, 'g', -1, 64))
	_, err = w.Write(buf.Bytes())
	return err
}

type sliceStatsResponse struct {
	Orientation models.Orientation `json:"orientation"`
	Index       int                `json:"index"`
	Spacing     float64            `json:"spacing"`
	Modality    string             `json:"modality"`
	Rows        int                `json:"rows"`
	Cols        int                `json:"cols"`
	visualization.SliceStats
}

func (s *Server) getSliceStats(w http.ResponseWriter, r *http.Request) error {
	id, o, index, err := s.sliceFromRequest(r)
	if err != nil {
		return err
	}
	view, ok := s.repo.GetSlice(o, id, index)
	if !ok {
		return makeNotFoundError("volume " + id)
	}
	rows, cols := view.Data.Dims()
	return writeJSON(w, http.StatusOK, sliceStatsResponse{
		Orientation: o,
		Index:       view.Index,
		Spacing:     view.Spacing,
		Modality:    view.Modality,
		Rows:        rows,
		Cols:        cols,
		SliceStats:  visualization.Stats(view.Data),
	})
}

type pointerQuery struct {
	point interaction.Point
	box   interaction.Size
}

func pointerFromQuery(r *http.Request) (pointerQuery, error) {
	var q pointerQuery
	var err error
	if q.point.X, err = floatParam(r, "x"); err != nil {
		return q, err
	}
	if q.point.Y, err = floatParam(r, "y"); err != nil {
		return q, err
	}
	if q.box.Width, err = floatParam(r, "boxWidth"); err != nil {
		return q, err
	}
	if q.box.Height, err = floatParam(r, "boxHeight"); err != nil {
		return q, err
	}
	return q, nil
}

type probeResponse struct {
	Hit bool `json:"hit"`
	interaction.Probe
}

// probe reports the voxel under a pointer. Without ?index the slice
// currently shown for the shared scroll value is used.
func (s *Server) probe(w http.ResponseWriter, r *http.Request) error {
	v, err := s.volumeFromRequest(r)
	if err != nil {
		return err
	}
	o, err := models.ParseOrientation(r.URL.Query().Get("orientation"))
	if err != nil {
		return makeBadRequestError(err)
	}
	q, err := pointerFromQuery(r)
	if err != nil {
		return err
	}

	var p interaction.Probe
	var hit bool
	if raw := r.URL.Query().Get("index"); raw != "" {
		index, err := strconv.Atoi(raw)
		if err != nil {
			return makeBadRequestError(err)
		}
		p, hit = interaction.ProbeAt(v, o, index, q.point, q.box)
	} else {
		p, hit = s.engine.Probe(v, o, q.point, q.box)
	}
	return writeJSON(w, http.StatusOK, probeResponse{Hit: hit, Probe: p})
}

func measurementKey(id string, o models.Orientation) string {
	return id + "/" + o.String()
}

type measurementResponse struct {
	A        *interaction.Voxel `json:"a"`
	B        *interaction.Voxel `json:"b"`
	Distance *float64           `json:"distance"`
}

func toMeasurementResponse(m *interaction.Measurement) measurementResponse {
	if m == nil {
		return measurementResponse{}
	}
	return measurementResponse{A: m.A, B: m.B, Distance: m.Distance}
}

func (s *Server) getMeasurement(w http.ResponseWriter, r *http.Request) error {
	v, err := s.volumeFromRequest(r)
	if err != nil {
		return err
	}
	o, err := orientationFromRequest(r)
	if err != nil {
		return err
	}
	s.measureMu.Lock()
	resp := toMeasurementResponse(s.measurements[measurementKey(v.ID, o)])
	s.measureMu.Unlock()
	return writeJSON(w, http.StatusOK, resp)
}

type clickRequest struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	BoxWidth  float64 `json:"boxWidth"`
	BoxHeight float64 `json:"boxHeight"`
}

// addMeasurementPoint feeds one click into the two-point distance tool
func (s *Server) addMeasurementPoint(w http.ResponseWriter, r *http.Request) error {
	v, err := s.volumeFromRequest(r)
	if err != nil {
		return err
	}
	o, err := orientationFromRequest(r)
	if err != nil {
		return err
	}
	var req clickRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}

	key := measurementKey(v.ID, o)
	s.measureMu.Lock()
	// a delete that landed since the lookup has already cleared its entries
	cur, ok := s.repo.Get(v.ID)
	if !ok {
		s.measureMu.Unlock()
		return makeNotFoundError("volume " + v.ID)
	}
	m, found := s.measurements[key]
	if !found {
		m = &interaction.Measurement{}
		s.measurements[key] = m
	}
	hit := s.engine.Measure(cur, o, m, interaction.Point{X: req.X, Y: req.Y}, interaction.Size{Width: req.BoxWidth, Height: req.BoxHeight})
	resp := toMeasurementResponse(m)
	s.measureMu.Unlock()

	if !hit {
		return makeBadRequestError(fmt.Errorf("click at (%g,%g) is outside the image", req.X, req.Y))
	}
	return writeJSON(w, http.StatusOK, resp)
}

func (s *Server) clearMeasurement(w http.ResponseWriter, r *http.Request) error {
	o, err := orientationFromRequest(r)
	if err != nil {
		return err
	}
	s.measureMu.Lock()
	if m, ok := s.measurements[measurementKey(mux.Vars(r)["id"], o)]; ok {
		m.Clear()
	}
	s.measureMu.Unlock()
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) getWindowing(w http.ResponseWriter, r *http.Request) error {
	v, err := s.volumeFromRequest(r)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, s.engine.Windowing(v.ID))
}

type windowingRequest struct {
	Center *float64 `json:"center"`
	Width  *float64 `json:"width"`
}

// putWindowing changes the center, the width, or both
func (s *Server) putWindowing(w http.ResponseWriter, r *http.Request) error {
	v, err := s.volumeFromRequest(r)
	if err != nil {
		return err
	}
	id := v.ID
	var req windowingRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	if req.Width != nil && *req.Width <= 0 {
		return makeBadRequestError(fmt.Errorf("width must be positive, got %g", *req.Width))
	}
	if req.Center != nil {
		s.engine.SetCenter(id, *req.Center)
	}
	if req.Width != nil {
		s.engine.SetWidth(id, *req.Width)
	}
	return writeJSON(w, http.StatusOK, s.engine.Windowing(id))
}

func (s *Server) applyPreset(w http.ResponseWriter, r *http.Request) error {
	v, err := s.volumeFromRequest(r)
	if err != nil {
		return err
	}
	name := mux.Vars(r)["name"]
	if !s.engine.ApplyPreset(v.ID, name) {
		return makeNotFoundError("preset " + name)
	}
	return writeJSON(w, http.StatusOK, s.engine.Windowing(v.ID))
}

func (s *Server) listPresets(w http.ResponseWriter, r *http.Request) error {
	out := map[string]models.WindowingParams{}
	for _, name := range interaction.PresetNames() {
		out[name], _ = interaction.Preset(name)
	}
	return writeJSON(w, http.StatusOK, out)
}

type toggleRequest struct {
	Selected bool `json:"selected"`
}

func (s *Server) putVolumeSelection(w http.ResponseWriter, r *http.Request) error {
	v, err := s.volumeFromRequest(r)
	if err != nil {
		return err
	}
	var req toggleRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	s.engine.UpdateSelection(v.ID, req.Selected)
	return writeJSON(w, http.StatusOK, s.engine.Selection())
}

func (s *Server) getSelection(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, s.engine.Selection())
}

func (s *Server) putView(w http.ResponseWriter, r *http.Request) error {
	o, err := orientationFromRequest(r)
	if err != nil {
		return err
	}
	var req toggleRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	s.engine.UpdateSelectedViews(o, req.Selected)
	return writeJSON(w, http.StatusOK, s.engine.Selection())
}

func (s *Server) putMode(w http.ResponseWriter, r *http.Request) error {
	mode := interaction.Mode(mux.Vars(r)["mode"])
	if mode != interaction.ModeMeasure && mode != interaction.ModePixelProbe {
		return makeNotFoundError("mode " + string(mode))
	}
	var req toggleRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	s.engine.UpdateMode(mode, req.Selected)
	return writeJSON(w, http.StatusOK, s.engine.Selection())
}

type scrollResponse struct {
	Value float64 `json:"value"`
	Max   int     `json:"max"`
}

func (s *Server) scrollState(w http.ResponseWriter) error {
	return writeJSON(w, http.StatusOK, scrollResponse{Value: s.engine.ScrollIndex(), Max: s.engine.MaxScrollIndex()})
}

func (s *Server) getScroll(w http.ResponseWriter, r *http.Request) error {
	return s.scrollState(w)
}

func (s *Server) putScroll(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Value float64 `json:"value"`
	}
	if err := readJSON(r, &req); err != nil {
		return err
	}
	s.engine.SetScrollIndex(req.Value)
	return s.scrollState(w)
}

func (s *Server) incrementScroll(w http.ResponseWriter, r *http.Request) error {
	s.engine.Increment()
	return s.scrollState(w)
}

// decrementScroll stops at zero unless ?clamp=false is given
func (s *Server) decrementScroll(w http.ResponseWriter, r *http.Request) error {
	clamp := true
	if raw := r.URL.Query().Get("clamp"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return makeBadRequestError(err)
		}
		clamp = b
	}
	s.engine.Decrement(clamp)
	return s.scrollState(w)
}

func (s *Server) listMappings(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, s.repo.Mappings())
}

type mappingRequest struct {
	Title   string   `json:"title"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

func (s *Server) addMapping(w http.ResponseWriter, r *http.Request) error {
	var req mappingRequest
	if err := readJSON(r, &req); err != nil {
		return err
	}
	if req.Title == "" {
		return makeBadRequestError(fmt.Errorf("mapping title is required"))
	}
	if err := s.repo.AddMapping(req.Title, req.Inputs, req.Outputs); err != nil {
		return err
	}
	m, _ := s.repo.GetMapping(req.Title)
	return writeJSON(w, http.StatusCreated, m)
}

func (s *Server) getMapping(w http.ResponseWriter, r *http.Request) error {
	key := mux.Vars(r)["key"]
	m, ok := s.repo.GetMapping(key)
	if !ok {
		return makeNotFoundError("mapping " + key)
	}
	return writeJSON(w, http.StatusOK, m)
}

// deleteMapping removes the mapping and every volume it references
func (s *Server) deleteMapping(w http.ResponseWriter, r *http.Request) error {
	key := mux.Vars(r)["key"]
	if !s.repo.HasMapping(key) {
		return makeNotFoundError("mapping " + key)
	}
	if err := s.repo.RemoveMapping(key); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
