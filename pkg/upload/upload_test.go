package upload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"niftiview/internal/models"
	"niftiview/pkg/metrics"
	"niftiview/pkg/nifti"
	"niftiview/pkg/repository"
)

func writeVolume(t *testing.T, dir, name string, w, h, d int) string {
	t.Helper()
	data := make([]float64, w*h*d)
	for i := range data {
		data[i] = float64(i) * 1.5
	}
	vol := &models.Volume{
		Dims:    models.Dimensions{Width: w, Height: h, Depth: d},
		Spacing: models.Spacing{X: 1, Y: 1, Z: 2},
		Data:    data,
	}
	path := filepath.Join(dir, name)
	if err := nifti.WriteFile(path, vol, nifti.LittleEndian); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func newUploader(t *testing.T) (*Uploader, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	repo, err := repository.New(repository.Options{Metrics: m})
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	return &Uploader{Repo: repo, Metrics: m, Workers: 2}, m
}

func TestIDFromPath(t *testing.T) {
	cases := map[string]string{
		"/data/CT_patient1.nii.gz": "CT_patient1",
		"scan.NII.GZ":              "scan",
		"dir/pet.nii":              "pet",
		"notes.txt":                "notes",
	}
	for in, want := range cases {
		if got := IDFromPath(in); got != want {
			t.Errorf("IDFromPath(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestExtractModality(t *testing.T) {
	cases := map[string]string{
		"patient_ct.nii.gz":   "CT",
		"PET_suv.nii":         "PET",
		"brain_mri.nii":       "MR",
		"/scans/T1w.nii.gz":   "T1",
		"flair_axial.nii":     "FLAIR",
		"/ct_dir/unknown.nii": "",
	}
	for in, want := range cases {
		if got := ExtractModality(in); got != want {
			t.Errorf("ExtractModality(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeVolume(t, dir, "CT_head.nii.gz", 3, 2, 4)
	u, m := newUploader(t)

	id, err := u.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if id != "CT_head" {
		t.Errorf("Expected id CT_head, got %s", id)
	}

	vol, ok := u.Repo.Get(id)
	if !ok {
		t.Fatal("Expected volume in repository")
	}
	if vol.Modality != "CT" || vol.Name != "CT_head.nii.gz" {
		t.Errorf("Expected CT volume named CT_head.nii.gz, got %s %s", vol.Modality, vol.Name)
	}
	if vol.Dims != (models.Dimensions{Width: 3, Height: 2, Depth: 4}) {
		t.Errorf("Expected dims 3x2x4, got %+v", vol.Dims)
	}
	if vol.Spacing.Z != 2 {
		t.Errorf("Expected z spacing from pixdim 2, got %f", vol.Spacing.Z)
	}
	if vol.Data[5] != 7.5 {
		t.Errorf("Expected voxel 5 to be 7.5, got %f", vol.Data[5])
	}

	if got := testutil.ToFloat64(m.Decodes.WithLabelValues("ok")); got != 1 {
		t.Errorf("Expected 1 successful decode, got %f", got)
	}
	if got := testutil.ToFloat64(m.DecodedBytes); got != 3*2*4*8 {
		t.Errorf("Expected %d decoded bytes, got %f", 3*2*4*8, got)
	}
}

func TestLoadFileBadInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.nii")
	if err := os.WriteFile(path, make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}
	u, m := newUploader(t)

	if _, err := u.LoadFile(context.Background(), path); err == nil {
		t.Fatal("Expected short file to fail")
	}
	if len(u.Repo.List()) != 0 {
		t.Error("Expected nothing stored")
	}
	if got := testutil.ToFloat64(m.Decodes.WithLabelValues(nifti.TooSmall.String())); got != 1 {
		t.Errorf("Expected 1 too-small decode, got %f", got)
	}

	if _, err := u.LoadFile(context.Background(), filepath.Join(dir, "missing.nii")); err == nil {
		t.Error("Expected missing file to fail")
	}
}

func TestLoadFilesSkipsFailures(t *testing.T) {
	dir := t.TempDir()
	a := writeVolume(t, dir, "a_PET.nii", 2, 2, 2)
	bad := filepath.Join(dir, "bad.nii")
	if err := os.WriteFile(bad, []byte("not nifti"), 0644); err != nil {
		t.Fatal(err)
	}
	c := writeVolume(t, dir, "c_CT.nii.gz", 2, 2, 2)

	u, _ := newUploader(t)
	ids, err := u.LoadFiles(context.Background(), []string{a, bad, c})
	if err != nil {
		t.Fatalf("LoadFiles failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a_PET" || ids[1] != "c_CT" {
		t.Errorf("Expected [a_PET c_CT], got %v", ids)
	}
}

func TestLoadFilesCancelled(t *testing.T) {
	dir := t.TempDir()
	a := writeVolume(t, dir, "a.nii", 2, 2, 2)
	u, _ := newUploader(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := u.LoadFiles(ctx, []string{a}); err == nil {
		t.Error("Expected cancelled context to fail")
	}
}

func TestLoadMapping(t *testing.T) {
	dir := t.TempDir()
	ct := writeVolume(t, dir, "p1_CT.nii.gz", 2, 2, 2)
	pet := writeVolume(t, dir, "p1_PET.nii.gz", 2, 2, 2)
	synth := writeVolume(t, dir, "p1_synth_PET.nii", 2, 2, 2)
	missing := filepath.Join(dir, "p1_missing.nii")

	u, _ := newUploader(t)
	m, err := u.LoadMapping(context.Background(), "patient-1", []string{ct, pet, missing}, []string{synth})
	if err != nil {
		t.Fatalf("LoadMapping failed: %v", err)
	}
	if len(m.Inputs) != 2 || m.Inputs[0] != "p1_CT" || m.Inputs[1] != "p1_PET" {
		t.Errorf("Expected inputs [p1_CT p1_PET], got %v", m.Inputs)
	}
	if len(m.Outputs) != 1 || m.Outputs[0] != "p1_synth_PET" {
		t.Errorf("Expected outputs [p1_synth_PET], got %v", m.Outputs)
	}

	stored, ok := u.Repo.GetMapping("patient-1")
	if !ok || len(stored.IDs()) != 3 {
		t.Errorf("Expected mapping with 3 ids in repository, got %+v", stored)
	}
}
