package service

import (
	"context"
	"log/slog"

	"github.com/atspro/atspro/internal/archive"
	"github.com/atspro/atspro/internal/document"
)

// ArchiveUpload stores the original file a report was created from. It is a
// no-op without an archive. Failures are logged, never returned.
func (b *ReportBook) ArchiveUpload(ctx context.Context, userID, reportID, filename, contentType string, data []byte) {
	if b.archive == nil || len(data) == 0 {
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := archive.Key(userID, reportID, document.Extension(filename))
	if err := b.archive.Put(ctx, key, data, contentType); err != nil {
		b.logger.Warn("failed to archive upload",
			slog.String("report_id", reportID),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	b.logger.Debug("upload archived", slog.String("report_id", reportID), slog.String("key", key))
}
