package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/pif-course/collector/api"
	"github.com/pif-course/collector/internal/source"
)

// DefaultLimit bounds concurrent attachment downloads so the submission
// source's rate limits are respected.
const DefaultLimit = 6

// Downloader fetches submission attachments through the submission source.
// Completed destination paths are remembered for the lifetime of the
// downloader, so re-running a cohort skips files that are already on disk.
type Downloader struct {
	src   source.Source
	limit int
	log   *slog.Logger
	done  *xsync.MapOf[string, struct{}]
}

// Result is the outcome of one attachment download.
type Result struct {
	Attachment api.Attachment
	Path       string
	Err        error
}

func New(src source.Source, limit int, log *slog.Logger) *Downloader {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Downloader{
		src:   src,
		limit: limit,
		log:   log,
		done:  xsync.NewMapOf[string, struct{}](),
	}
}

// FetchAll downloads every attachment into dir, at most limit at a time.
// It never fails as a whole: each result carries its own error, and the
// returned slice has one entry per attachment in the input order. All
// downloads have completed (or failed) when FetchAll returns.
func (d *Downloader) FetchAll(ctx context.Context, attachments []api.Attachment, dir string) ([]Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory %s: %w", dir, err)
	}

	results := make([]Result, len(attachments))
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(d.limit)

	// two attachments may carry the same title; later ones get the
	// attachment id worked into the name so no content is dropped
	taken := map[string]bool{}
	for i, att := range attachments {
		base := filepath.Base(att.Title)
		if taken[base] {
			ext := filepath.Ext(base)
			base = strings.TrimSuffix(base, ext) + "-" + att.ID + ext
		}
		taken[base] = true

		dst := filepath.Join(dir, base)
		grp.Go(func() error {
			results[i] = Result{Attachment: att, Path: dst, Err: d.fetchOne(ctx, att, dst)}
			return nil
		})
	}

	// errors are carried per result, the group never fails
	_ = grp.Wait()
	return results, nil
}

func (d *Downloader) fetchOne(ctx context.Context, att api.Attachment, dst string) error {
	if _, loaded := d.done.LoadOrStore(dst, struct{}{}); loaded {
		return nil
	}
	if info, err := os.Stat(dst); err == nil && info.Size() > 0 {
		d.log.Debug("attachment already on disk", slog.String("path", dst))
		return nil
	}

	err := d.src.DownloadAttachment(ctx, att.ID, dst)
	if err != nil {
		d.done.Delete(dst)
		// discard whatever a failed transfer left behind
		_ = os.Remove(dst)
		d.log.Warn("attachment download failed",
			slog.String("title", att.Title), slog.Any("error", err))
		return err
	}
	d.log.Debug("attachment downloaded", slog.String("path", dst))
	return nil
}
