package singer

import (
	"os"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/tap-google-analytics/pkg/taperrors"
)

// Bookmark is a stream's replication checkpoint: the last report date whose
// window completed successfully.
type Bookmark struct {
	LastReportDate string `json:"last_report_date"`
}

// State is the persisted sync state. currently_syncing is informational
// only; resumability depends solely on the bookmarks.
type State struct {
	Bookmarks        map[string]Bookmark `json:"bookmarks"`
	CurrentlySyncing string              `json:"currently_syncing,omitempty"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Bookmarks: make(map[string]Bookmark)}
}

// LoadState reads state from a JSON file. A missing or empty path yields an
// empty state, matching a first run.
func LoadState(path string) (*State, error) {
	if path == "" {
		return NewState(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to read state file").
			WithDetail("path", path)
	}

	state := NewState()
	if len(data) > 0 {
		if err := json.Unmarshal(data, state); err != nil {
			return nil, taperrors.Wrap(err, taperrors.ErrorTypeConfig, "failed to parse state file").
				WithDetail("path", path)
		}
	}
	if state.Bookmarks == nil {
		state.Bookmarks = make(map[string]Bookmark)
	}

	return state, nil
}

// LastReportDate returns the bookmark date for a stream, or fallback when
// the stream has never been synced.
func (s *State) LastReportDate(streamID, fallback string) string {
	if bm, ok := s.Bookmarks[streamID]; ok && bm.LastReportDate != "" {
		return bm.LastReportDate
	}
	return fallback
}

// SetBookmark advances the bookmark for a stream.
func (s *State) SetBookmark(streamID, lastReportDate string) {
	if s.Bookmarks == nil {
		s.Bookmarks = make(map[string]Bookmark)
	}
	s.Bookmarks[streamID] = Bookmark{LastReportDate: lastReportDate}
}

// SetCurrentlySyncing records the in-flight stream, or clears it when empty.
func (s *State) SetCurrentlySyncing(streamID string) {
	s.CurrentlySyncing = streamID
}
