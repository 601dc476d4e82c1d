// Package upload decodes NIfTI files off the caller's goroutine and stores
// the results in a repository.
package upload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"niftiview/pkg/logger"
	"niftiview/pkg/metrics"
	"niftiview/pkg/nifti"
	"niftiview/pkg/repository"
)

var knownModalities = []string{"CT", "PET", "MR", "MRI", "T1", "T2", "FLAIR"}

// ExtractModality returns the first known modality tag contained in the
// file name, or "" if there is none
func ExtractModality(filename string) string {
	upper := strings.ToUpper(filepath.Base(filename))
	for _, m := range knownModalities {
		if strings.Contains(upper, m) {
			return m
		}
	}
	return ""
}

// IDFromPath derives the volume id from a file name by dropping the
// directory and the .nii.gz or .nii extension
func IDFromPath(path string) string {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	for _, ext := range []string{".nii.gz", ".nii"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Uploader loads files into Repo. Logger and Metrics are optional.
type Uploader struct {
	Repo    *repository.Repository
	Logger  logger.ILogger
	Metrics *metrics.Metrics

	// Workers limits concurrent decodes in LoadFiles; <= 0 means one
	Workers int
}

func (u *Uploader) log() logger.ILogger {
	if u.Logger == nil {
		return logger.NullLogger{}
	}
	return u.Logger
}

// LoadFile decodes path, stores the volume and returns its id
func (u *Uploader) LoadFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := IDFromPath(path)
	log := u.log()

	var size uint64
	if fi, err := os.Stat(path); err == nil {
		size = uint64(fi.Size())
	}
	log.Infof("Decoding %s (%s)", path, humanize.Bytes(size))

	start := time.Now()
	vol, warnings, err := nifti.ReadFile(path, nifti.Metadata{
		ID:       id,
		Name:     filepath.Base(path),
		Modality: ExtractModality(path),
	})
	elapsed := time.Since(start)

	for _, w := range warnings {
		log.Infof("%s: %s", path, w)
	}
	u.observe(err, len(warnings), elapsed)
	if err != nil {
		log.Errorf("Failed to load %s: %v", path, err)
		return "", err
	}

	payload := uint64(len(vol.Data) * 8)
	if u.Metrics != nil {
		u.Metrics.DecodedBytes.Add(float64(payload))
	}
	log.Infof("Loaded %s as %s: %dx%dx%d %s, %s of voxels in %v",
		path, id, vol.Dims.Width, vol.Dims.Height, vol.Dims.Depth, vol.Modality, humanize.Bytes(payload), elapsed)

	u.Repo.Store(id, vol)
	return id, nil
}

func (u *Uploader) observe(err error, warnings int, elapsed time.Duration) {
	if u.Metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		var fe *nifti.FormatError
		if errors.As(err, &fe) {
			result = fe.Kind.String()
		}
	}
	u.Metrics.Decodes.WithLabelValues(result).Inc()
	u.Metrics.DecodeWarnings.Add(float64(warnings))
	u.Metrics.DecodeSeconds.Observe(elapsed.Seconds())
}

// LoadFiles decodes paths with at most Workers files in flight. Files that
// fail are logged and skipped. The ids of the stored volumes are returned
// in the order of paths; only cancellation of ctx is reported as an error.
func (u *Uploader) LoadFiles(ctx context.Context, paths []string) ([]string, error) {
	workers := u.Workers
	if workers < 1 {
		workers = 1
	}

	ids := make([]string, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			id, err := u.LoadFile(gctx, path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return nil
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := ids[:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

// LoadMapping loads the input and output files of one case and records
// them under title. Files that fail to decode are left out of the mapping.
func (u *Uploader) LoadMapping(ctx context.Context, title string, inputs, outputs []string) (repository.Mapping, error) {
	all := append(append([]string(nil), inputs...), outputs...)

	loaded, err := u.LoadFiles(ctx, all)
	if err != nil {
		return repository.Mapping{}, err
	}
	ok := make(map[string]struct{}, len(loaded))
	for _, id := range loaded {
		ok[id] = struct{}{}
	}

	pick := func(paths []string) []string {
		var out []string
		for _, p := range paths {
			if _, found := ok[IDFromPath(p)]; found {
				out = append(out, IDFromPath(p))
			}
		}
		return out
	}
	m := repository.Mapping{Title: title, Inputs: pick(inputs), Outputs: pick(outputs)}

	if err := u.Repo.AddMapping(title, m.Inputs, m.Outputs); err != nil {
		return m, errors.Wrapf(err, "mapping %s", title)
	}
	u.log().Infof("Mapping %s: %d inputs, %d outputs", title, len(m.Inputs), len(m.Outputs))
	return m, nil
}
