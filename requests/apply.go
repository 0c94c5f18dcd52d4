package requests

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/brettbedarf/webvfs"
	"github.com/brettbedarf/webvfs/filesystem"
	"github.com/brettbedarf/webvfs/internal/util"
	"github.com/brettbedarf/webvfs/persist"
)

// Report counts what Apply did
type Report struct {
	Dirs     int // directories requested and present afterwards
	Files    int // files written
	Warnings int // mutations applied but not persisted
}

// Apply creates every directory, then writes every file. Missing
// ancestors are created on the way. A failing node is skipped and its
// error joined into the result; persistence warnings only count in the
// report.
func Apply(ctx context.Context, op webvfs.Operator, reqs *Requests) (Report, error) {
	logger := util.GetLogger("requests")
	a := &applier{op: op}

	dirs := slices.Clone(reqs.Dirs)
	slices.SortFunc(dirs, func(x, y *DirRequest) int { return cmp.Compare(x.Path, y.Path) })
	for _, req := range dirs {
		if err := a.mkdirAll(ctx, req.Path); err != nil {
			logger.Debug().Str("id", req.ID).Str("path", req.Path).Err(err).Msg("Failed to add directory request")
			a.errs = append(a.errs, err)
			continue
		}
		a.report.Dirs++
	}

	for _, req := range reqs.Files {
		if err := a.writeFile(ctx, req); err != nil {
			logger.Debug().Str("id", req.ID).Str("path", req.Path).Err(err).Msg("Failed to add file request")
			a.errs = append(a.errs, err)
			continue
		}
		a.report.Files++
	}

	logger.Info().
		Int("directories", a.report.Dirs).
		Int("files", a.report.Files).
		Int("warnings", a.report.Warnings).
		Msg("Added new nodes to filesystem")
	return a.report, errors.Join(a.errs...)
}

type applier struct {
	op     webvfs.Operator
	report Report
	errs   []error
}

// check drops warnings after counting them
func (a *applier) check(err error) error {
	if persist.IsWarning(err) {
		a.report.Warnings++
		return nil
	}
	return err
}

func (a *applier) mkdirAll(ctx context.Context, p string) error {
	cur := filesystem.Root
	for _, seg := range filesystem.Segments(p) {
		cur = filesystem.Join(cur, seg)
		if err := a.check(a.op.Mkdir(ctx, cur)); err != nil {
			return err
		}
	}
	return nil
}

func (a *applier) writeFile(ctx context.Context, req *FileRequest) error {
	parent, _ := filesystem.Split(req.Path)
	if err := a.mkdirAll(ctx, parent); err != nil {
		return err
	}

	var fetchErrs []error
	for _, src := range req.Sources {
		data, err := src.Fetch(ctx)
		if err != nil {
			fetchErrs = append(fetchErrs, err)
			continue
		}
		return a.check(a.op.WriteFile(ctx, req.Path, data))
	}
	return fmt.Errorf("no source for %s: %w", req.Path, errors.Join(fetchErrs...))
}
