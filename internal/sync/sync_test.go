package sync

import (
	"bufio"
	"bytes"
	"context"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-google-analytics/pkg/catalog"
	"github.com/ajitpratap0/tap-google-analytics/pkg/config"
	"github.com/ajitpratap0/tap-google-analytics/pkg/ga"
	"github.com/ajitpratap0/tap-google-analytics/pkg/singer"
	"github.com/ajitpratap0/tap-google-analytics/pkg/taperrors"
)

type windowCall struct {
	stream string
	start  time.Time
	end    time.Time
}

// fakeClient records every window it is asked for and answers via respond.
type fakeClient struct {
	calls   []windowCall
	respond func(def *ga.ReportDefinition, start, end time.Time) ([]ga.Record, error)
}

func (f *fakeClient) ProcessWindow(_ context.Context, start, end time.Time, def *ga.ReportDefinition) ([]ga.Record, error) {
	f.calls = append(f.calls, windowCall{stream: def.Name, start: start, end: end})
	if f.respond != nil {
		return f.respond(def, start, end)
	}
	return []ga.Record{{"ga_date": start.Format(dateLayout), "ga_sessions": int64(1)}}, nil
}

func testStream(id string, selected bool) catalog.Stream {
	streamMD := map[string]interface{}{
		"inclusion":            "available",
		"selected":             selected,
		"table-key-properties": []string{"_sdc_record_hash"},
	}
	return catalog.Stream{
		TapStreamID: id,
		Stream:      id,
		Schema:      json.RawMessage(`{"type":"object","properties":{}}`),
		Metadata: []catalog.MetadataEntry{
			{Breadcrumb: []string{}, Metadata: streamMD},
			{Breadcrumb: []string{"properties", "ga_date"}, Metadata: map[string]interface{}{"ga_type": "dimension"}},
			{Breadcrumb: []string{"properties", "ga_sessions"}, Metadata: map[string]interface{}{"ga_type": "metric"}},
		},
	}
}

func testConfig(start, end string) *config.Config {
	return &config.Config{
		ViewID:       "1234567",
		DateBatching: config.BatchingDay,
		Start:        day(start),
		End:          day(end),
	}
}

type message struct {
	Type   string                 `json:"type"`
	Stream string                 `json:"stream"`
	Record map[string]interface{} `json:"record"`
	Value  *singer.State          `json:"value"`
}

func decodeMessages(t *testing.T, out *bytes.Buffer) []message {
	t.Helper()
	var msgs []message
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var msg message
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &msg))
		msgs = append(msgs, msg)
	}
	require.NoError(t, scanner.Err())
	return msgs
}

func newTestSyncer(cfg *config.Config, cat *catalog.Catalog, client ReportClient, state *singer.State) (*Syncer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return NewSyncer(cfg, cat, client, singer.NewEmitter(out), state), out
}

func TestRunEmitsSchemaThenRecordsThenState(t *testing.T) {
	cat := &catalog.Catalog{Streams: []catalog.Stream{testStream("pages", true)}}
	client := &fakeClient{}
	s, out := newTestSyncer(testConfig("2024-01-01", "2024-01-03"), cat, client, singer.NewState())

	require.NoError(t, s.Run(context.Background()))

	msgs := decodeMessages(t, out)
	// SCHEMA, then (RECORD, STATE) per daily window, then the final STATE.
	require.Len(t, msgs, 1+3*2+1)
	assert.Equal(t, singer.MessageTypeSchema, msgs[0].Type)
	assert.Equal(t, "pages", msgs[0].Stream)
	for i := 0; i < 3; i++ {
		record := msgs[1+i*2]
		state := msgs[2+i*2]
		assert.Equal(t, singer.MessageTypeRecord, record.Type)
		assert.Equal(t, singer.MessageTypeState, state.Type)
	}

	// Each window's STATE acknowledges exactly that window.
	assert.Equal(t, "2024-01-01", msgs[2].Value.Bookmarks["pages"].LastReportDate)
	assert.Equal(t, "2024-01-02", msgs[4].Value.Bookmarks["pages"].LastReportDate)
	assert.Equal(t, "2024-01-03", msgs[6].Value.Bookmarks["pages"].LastReportDate)

	final := msgs[len(msgs)-1]
	assert.Equal(t, singer.MessageTypeState, final.Type)
	assert.Empty(t, final.Value.CurrentlySyncing)
	assert.Equal(t, "2024-01-03", final.Value.Bookmarks["pages"].LastReportDate)
}

func TestRunResumesFromBookmarkWithLookback(t *testing.T) {
	cat := &catalog.Catalog{Streams: []catalog.Stream{testStream("pages", true)}}
	client := &fakeClient{}
	cfg := testConfig("2024-01-01", "2024-02-15")
	cfg.LookbackDays = 3

	state := singer.NewState()
	state.SetBookmark("pages", "2024-02-10")

	s, _ := newTestSyncer(cfg, cat, client, state)
	require.NoError(t, s.Run(context.Background()))

	require.NotEmpty(t, client.calls)
	assert.True(t, client.calls[0].start.Equal(day("2024-02-07")),
		"sync resumes lookback days before the bookmark, got %s", client.calls[0].start)
	assert.True(t, client.calls[len(client.calls)-1].end.Equal(day("2024-02-15")))
}

func TestRunFreshStreamAppliesLookback(t *testing.T) {
	cat := &catalog.Catalog{Streams: []catalog.Stream{testStream("pages", true)}}
	client := &fakeClient{}
	cfg := testConfig("2024-03-01", "2024-03-05")
	cfg.LookbackDays = 15

	s, _ := newTestSyncer(cfg, cat, client, singer.NewState())
	require.NoError(t, s.Run(context.Background()))

	// A never-synced stream defaults to the configured start date, and the
	// lookback applies to that default too.
	require.NotEmpty(t, client.calls)
	assert.True(t, client.calls[0].start.Equal(day("2024-02-15")),
		"fresh stream starts lookback days before the configured start, got %s", client.calls[0].start)
	assert.True(t, client.calls[len(client.calls)-1].end.Equal(day("2024-03-05")))
}

func TestRunLookbackMayPrecedeConfiguredStart(t *testing.T) {
	cat := &catalog.Catalog{Streams: []catalog.Stream{testStream("pages", true)}}
	client := &fakeClient{}
	cfg := testConfig("2024-02-09", "2024-02-15")
	cfg.LookbackDays = 30

	state := singer.NewState()
	state.SetBookmark("pages", "2024-02-10")

	s, _ := newTestSyncer(cfg, cat, client, state)
	require.NoError(t, s.Run(context.Background()))

	require.NotEmpty(t, client.calls)
	assert.True(t, client.calls[0].start.Equal(day("2024-01-11")),
		"lookback is not clipped at the configured start, got %s", client.calls[0].start)
}

func TestRunBookmarkStopsAtLastCompletedWindow(t *testing.T) {
	cat := &catalog.Catalog{Streams: []catalog.Stream{testStream("pages", true)}}
	client := &fakeClient{
		respond: func(_ *ga.ReportDefinition, start, _ time.Time) ([]ga.Record, error) {
			if start.After(day("2024-01-01")) {
				return nil, taperrors.New(taperrors.ErrorTypeRateLimit, "rate limit exceeded")
			}
			return []ga.Record{{"ga_sessions": int64(7)}}, nil
		},
	}
	state := singer.NewState()
	s, out := newTestSyncer(testConfig("2024-01-01", "2024-01-03"), cat, client, state)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrPartialSync)

	// Only the first window completed, so that is where the next run resumes.
	assert.Equal(t, "2024-01-01", state.Bookmarks["pages"].LastReportDate)
	msgs := decodeMessages(t, out)
	final := msgs[len(msgs)-1]
	require.Equal(t, singer.MessageTypeState, final.Type)
	assert.Equal(t, "2024-01-01", final.Value.Bookmarks["pages"].LastReportDate)
}

func TestRunSkipsFailedStreamAndContinues(t *testing.T) {
	cat := &catalog.Catalog{Streams: []catalog.Stream{
		testStream("broken", true),
		testStream("pages", true),
	}}
	client := &fakeClient{
		respond: func(def *ga.ReportDefinition, start, _ time.Time) ([]ga.Record, error) {
			if def.Name == "broken" {
				return nil, taperrors.New(taperrors.ErrorTypeInvalidArgument, "unknown dimension")
			}
			return []ga.Record{{"ga_sessions": int64(1)}}, nil
		},
	}
	state := singer.NewState()
	s, _ := newTestSyncer(testConfig("2024-01-01", "2024-01-02"), cat, client, state)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrPartialSync)

	// The healthy stream still ran to completion and bookmarked.
	assert.Equal(t, "2024-01-02", state.Bookmarks["pages"].LastReportDate)
	_, hasBroken := state.Bookmarks["broken"]
	assert.False(t, hasBroken)
}

func TestRunAbortsOnAuthenticationError(t *testing.T) {
	cat := &catalog.Catalog{Streams: []catalog.Stream{
		testStream("first", true),
		testStream("second", true),
	}}
	client := &fakeClient{
		respond: func(_ *ga.ReportDefinition, _, _ time.Time) ([]ga.Record, error) {
			return nil, taperrors.New(taperrors.ErrorTypeAuthentication, "invalid credentials")
		},
	}
	s, _ := newTestSyncer(testConfig("2024-01-01", "2024-01-02"), cat, client, singer.NewState())

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, taperrors.IsType(err, taperrors.ErrorTypeAuthentication))

	// The abort is immediate: the second stream is never queried.
	for _, call := range client.calls {
		assert.Equal(t, "first", call.stream)
	}
}

func TestRunSkipsUnselectedStreams(t *testing.T) {
	cat := &catalog.Catalog{Streams: []catalog.Stream{
		testStream("ignored", false),
		testStream("pages", true),
	}}
	client := &fakeClient{}
	s, _ := newTestSyncer(testConfig("2024-01-01", "2024-01-01"), cat, client, singer.NewState())

	require.NoError(t, s.Run(context.Background()))

	for _, call := range client.calls {
		assert.Equal(t, "pages", call.stream)
	}
	require.NotEmpty(t, client.calls)
}
