package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-google-analytics/pkg/catalog"
	"github.com/ajitpratap0/tap-google-analytics/pkg/config"
	"github.com/ajitpratap0/tap-google-analytics/pkg/ga"
	"github.com/ajitpratap0/tap-google-analytics/pkg/logger"
	"github.com/ajitpratap0/tap-google-analytics/pkg/metrics"
	"github.com/ajitpratap0/tap-google-analytics/pkg/singer"
	"github.com/ajitpratap0/tap-google-analytics/pkg/taperrors"
)

// ErrPartialSync reports that at least one stream was skipped after a
// non-fatal error. Streams that completed kept their bookmarks, so the next
// run resumes where they left off.
var ErrPartialSync = errors.New("one or more streams were skipped with errors")

// Terminal stream states, reported in logs and metrics.
const (
	statusCompleted = "completed"
	statusSkipped   = "skipped_with_errors"
	statusAborted   = "aborted"
)

const dateLayout = "2006-01-02"

// ReportClient runs one report window. *ga.Client satisfies it; tests
// substitute fakes.
type ReportClient interface {
	ProcessWindow(ctx context.Context, start, end time.Time, def *ga.ReportDefinition) ([]ga.Record, error)
}

// Syncer replicates every selected stream in the catalog in order.
type Syncer struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	client  ReportClient
	emitter *singer.Emitter
	state   *singer.State
	logger  *zap.Logger
	now     func() time.Time
}

// NewSyncer assembles a syncer over a loaded config, catalog and state.
func NewSyncer(cfg *config.Config, cat *catalog.Catalog, client ReportClient, emitter *singer.Emitter, state *singer.State) *Syncer {
	return &Syncer{
		cfg:     cfg,
		catalog: cat,
		client:  client,
		emitter: emitter,
		state:   state,
		logger:  logger.Get().Named("sync"),
		now:     time.Now,
	}
}

// Run syncs every selected stream. Streams failing with a stream-local error
// are skipped and Run returns ErrPartialSync once the rest have finished;
// fatal errors abort immediately with the underlying error.
func (s *Syncer) Run(ctx context.Context) error {
	partial := false

	for i := range s.catalog.Streams {
		stream := &s.catalog.Streams[i]
		if !stream.IsSelected() {
			s.logger.Info("stream not selected, skipping",
				zap.String("stream", stream.TapStreamID))
			continue
		}

		err := s.syncStream(ctx, stream)
		if err == nil {
			metrics.StreamOutcomes.WithLabelValues(stream.TapStreamID, statusCompleted).Inc()
			continue
		}

		switch failurePolicy(err) {
		case actionSkipStream:
			partial = true
			metrics.StreamOutcomes.WithLabelValues(stream.TapStreamID, statusSkipped).Inc()
			s.logger.Warn("stream failed, continuing with remaining streams",
				zap.String("stream", stream.TapStreamID),
				zap.Error(err))
		case actionAbort:
			metrics.StreamOutcomes.WithLabelValues(stream.TapStreamID, statusAborted).Inc()
			s.logger.Error("fatal error, aborting sync",
				zap.String("stream", stream.TapStreamID),
				zap.Error(err))
			return err
		}
	}

	s.state.SetCurrentlySyncing("")
	if err := s.emitter.WriteState(s.state); err != nil {
		return err
	}

	if partial {
		return ErrPartialSync
	}
	return nil
}

// syncStream replicates one stream window by window. The SCHEMA message goes
// out before any records, and a STATE message follows every completed window
// so an interrupted run never repeats finished windows.
func (s *Syncer) syncStream(ctx context.Context, stream *catalog.Stream) error {
	def, err := stream.ReportDefinition()
	if err != nil {
		return err
	}

	s.state.SetCurrentlySyncing(stream.TapStreamID)

	start, err := s.streamStart(stream.TapStreamID)
	if err != nil {
		return err
	}
	end := s.cfg.End

	if err := s.emitter.WriteSchema(stream.TapStreamID, stream.Schema, stream.KeyProperties()); err != nil {
		return err
	}

	windows := Windows(start, end, s.cfg.BatchIntervalDays())
	s.logger.Info("syncing stream",
		zap.String("stream", stream.TapStreamID),
		zap.String("start", start.Format(dateLayout)),
		zap.String("end", end.Format(dateLayout)),
		zap.Int("windows", len(windows)))

	for _, window := range windows {
		began := s.now()

		records, err := s.client.ProcessWindow(ctx, window.Start, window.End, def)
		if err != nil {
			return err
		}

		for _, record := range records {
			if err := s.emitter.WriteRecord(stream.TapStreamID, record); err != nil {
				return err
			}
		}

		s.state.SetBookmark(stream.TapStreamID, window.End.Format(dateLayout))
		if err := s.emitter.WriteState(s.state); err != nil {
			return err
		}

		elapsed := s.now().Sub(began)
		metrics.RecordsEmitted.WithLabelValues(stream.TapStreamID).Add(float64(len(records)))
		metrics.WindowsCompleted.WithLabelValues(stream.TapStreamID).Inc()
		metrics.WindowDuration.WithLabelValues(stream.TapStreamID).Observe(elapsed.Seconds())
		s.logger.Info("window completed",
			zap.String("stream", stream.TapStreamID),
			zap.String("window_start", window.Start.Format(dateLayout)),
			zap.String("window_end", window.End.Format(dateLayout)),
			zap.Int("records", len(records)),
			zap.Duration("elapsed", elapsed))
	}

	return nil
}

// streamStart resolves where a stream's sync begins: lookback_days before
// the stream's bookmark, or before the configured start date for a stream
// that has never been synced. The lookback always applies, so late-arriving
// Google Analytics data revisions get re-read on every run.
func (s *Syncer) streamStart(streamID string) (time.Time, error) {
	base := s.cfg.Start
	if bookmark := s.state.LastReportDate(streamID, ""); bookmark != "" {
		bookmarked, err := time.ParseInLocation(dateLayout, bookmark, time.UTC)
		if err != nil {
			return time.Time{}, taperrors.Wrap(err, taperrors.ErrorTypeConfig,
				"invalid bookmark date in state").
				WithDetail("stream", streamID).
				WithDetail("last_report_date", bookmark)
		}
		base = bookmarked
	}

	return base.AddDate(0, 0, -s.cfg.LookbackDays), nil
}
