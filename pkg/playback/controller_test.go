package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kaizorxxx/novastream/pkg/catalog"
	"github.com/kaizorxxx/novastream/pkg/stream"
)

type resolution struct {
	result stream.Result
	ok     bool
}

// fakeResolver resolves from a fixed map. A slug with a gate channel blocks
// until the channel is closed, for testing in-flight supersession.
type fakeResolver struct {
	mu      sync.Mutex
	results map[string]resolution
	gates   map[string]chan struct{}
}

func (r *fakeResolver) Resolve(ctx context.Context, episodeSlug string) (stream.Result, bool) {
	r.mu.Lock()
	gate := r.gates[episodeSlug]
	res := r.results[episodeSlug]
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return res.result, res.ok
}

func directResult(name, url string) resolution {
	return resolution{
		result: stream.Result{
			Sources: []stream.Source{{Name: name, Kind: stream.ClassifyURL(url), URL: url}},
		},
		ok: true,
	}
}

func newTestController(t *testing.T, resolver Resolver, policy AdPolicy) *Controller {
	t.Helper()
	opts := ControllerOptions{
		AutoAdvanceSeconds: 2,
		QualityMarker:      "720",
		TickInterval:       5 * time.Millisecond,
	}
	controller, err := NewController(opts, resolver, policy, SessionFlags{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(controller.Close)
	return controller
}

func waitForState(t *testing.T, controller *Controller, state State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return controller.Snapshot().State == state
	}, time.Second, time.Millisecond, "expected state %v, last seen %v", state, controller.Snapshot().State)
}

func playlist(slugs ...string) []catalog.EpisodeRef {
	var episodes []catalog.EpisodeRef
	for _, slug := range slugs {
		number, hasNumber := catalog.EpisodeNumber(slug)
		episodes = append(episodes, catalog.EpisodeRef{Slug: slug, Number: number, HasNumber: hasNumber})
	}
	return episodes
}

func TestSelectEpisodeDirect(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-1": directResult("Server 720P", "https://cdn.example.com/1.mp4"),
	}}
	controller := newTestController(t, resolver, AdPolicy{})

	gate := controller.SelectEpisode(context.Background(), "show-episode-1")
	require.False(t, gate.Gate)
	waitForState(t, controller, StatePlaying)
	snapshot := controller.Snapshot()
	require.Equal(t, "show-episode-1", snapshot.EpisodeSlug)
	require.Equal(t, "https://cdn.example.com/1.mp4", snapshot.Source.URL)
}

func TestSelectEpisodeEmbedded(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-1": directResult("NeoStream", "https://embed.example.com/player?id=1"),
	}}
	controller := newTestController(t, resolver, AdPolicy{})

	controller.SelectEpisode(context.Background(), "show-episode-1")
	waitForState(t, controller, StateEmbeddedPlaying)
}

func TestSelectEpisodeUnresolved(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{}}
	controller := newTestController(t, resolver, AdPolicy{})

	controller.SelectEpisode(context.Background(), "show-episode-1")
	waitForState(t, controller, StateError)
}

func TestSelectEpisodePrefersQualityMarker(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-1": {
			result: stream.Result{Sources: []stream.Source{
				{Name: "Server 360P", Kind: stream.KindDirect, URL: "https://cdn.example.com/360.mp4"},
				{Name: "Server 720P", Kind: stream.KindDirect, URL: "https://cdn.example.com/720.mp4"},
			}},
			ok: true,
		},
	}}
	controller := newTestController(t, resolver, AdPolicy{})

	controller.SelectEpisode(context.Background(), "show-episode-1")
	waitForState(t, controller, StatePlaying)
	require.Equal(t, "Server 720P", controller.Snapshot().Source.Name)
}

// A selection issued while a previous one is still resolving wins, even when
// the older resolution finishes later.
func TestStaleResolutionDiscarded(t *testing.T) {
	slowGate := make(chan struct{})
	resolver := &fakeResolver{
		results: map[string]resolution{
			"show-episode-1": directResult("Slow", "https://cdn.example.com/1.mp4"),
			"show-episode-2": directResult("Fast", "https://cdn.example.com/2.mp4"),
		},
		gates: map[string]chan struct{}{"show-episode-1": slowGate},
	}
	controller := newTestController(t, resolver, AdPolicy{})

	controller.SelectEpisode(context.Background(), "show-episode-1")
	controller.SelectEpisode(context.Background(), "show-episode-2")
	waitForState(t, controller, StatePlaying)
	require.Equal(t, "show-episode-2", controller.Snapshot().EpisodeSlug)

	// Now let the superseded resolution finish. It must be discarded.
	close(slowGate)
	time.Sleep(50 * time.Millisecond)
	snapshot := controller.Snapshot()
	require.Equal(t, "show-episode-2", snapshot.EpisodeSlug)
	require.Equal(t, "https://cdn.example.com/2.mp4", snapshot.Source.URL)
}

func TestMediaErrorDegradesToEmbedded(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-1": directResult("Server 720P", "https://cdn.example.com/1.mp4"),
	}}
	controller := newTestController(t, resolver, AdPolicy{})

	controller.SelectEpisode(context.Background(), "show-episode-1")
	waitForState(t, controller, StatePlaying)

	// The same URL is retried in a frame before giving up
	controller.OnMediaErrored()
	snapshot := controller.Snapshot()
	require.Equal(t, StateEmbeddedPlaying, snapshot.State)
	require.Equal(t, "https://cdn.example.com/1.mp4", snapshot.Source.URL)
	require.Equal(t, stream.KindEmbedded, snapshot.Source.Kind)

	controller.OnMediaErrored()
	require.Equal(t, StateError, controller.Snapshot().State)
}

func TestAutoAdvance(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-1": directResult("A", "https://cdn.example.com/1.mp4"),
		"show-episode-2": directResult("B", "https://cdn.example.com/2.mp4"),
	}}
	controller := newTestController(t, resolver, AdPolicy{})
	controller.LoadPlaylist(playlist("show-episode-1", "show-episode-2"))

	controller.SelectEpisode(context.Background(), "show-episode-1")
	waitForState(t, controller, StatePlaying)

	controller.OnMediaEnded()
	snapshot := controller.Snapshot()
	require.Equal(t, StateAutoAdvancePending, snapshot.State)
	// The first tick may already have fired, but the countdown hasn't run out
	require.Greater(t, snapshot.Countdown, 0)
	require.Equal(t, "show-episode-2", snapshot.NextEpisodeSlug)

	// The countdown runs out and the next episode starts on its own
	require.Eventually(t, func() bool {
		s := controller.Snapshot()
		return s.State == StatePlaying && s.EpisodeSlug == "show-episode-2"
	}, time.Second, time.Millisecond)
}

func TestAutoAdvanceLastEpisode(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-2": directResult("B", "https://cdn.example.com/2.mp4"),
	}}
	controller := newTestController(t, resolver, AdPolicy{})
	controller.LoadPlaylist(playlist("show-episode-1", "show-episode-2"))

	controller.SelectEpisode(context.Background(), "show-episode-2")
	waitForState(t, controller, StatePlaying)

	controller.OnMediaEnded()
	require.Equal(t, StateFinished, controller.Snapshot().State)
}

func TestCancelAutoAdvance(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-1": directResult("A", "https://cdn.example.com/1.mp4"),
		"show-episode-2": directResult("B", "https://cdn.example.com/2.mp4"),
	}}
	controller := newTestController(t, resolver, AdPolicy{})
	controller.LoadPlaylist(playlist("show-episode-1", "show-episode-2"))

	controller.SelectEpisode(context.Background(), "show-episode-1")
	waitForState(t, controller, StatePlaying)
	controller.OnMediaEnded()
	waitForState(t, controller, StateAutoAdvancePending)

	controller.CancelAutoAdvance()
	snapshot := controller.Snapshot()
	require.Equal(t, StateFinished, snapshot.State)
	require.Equal(t, 0, snapshot.Countdown)

	// No advance happens after cancellation
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, StateFinished, controller.Snapshot().State)
}

func TestAdvanceNow(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-1": directResult("A", "https://cdn.example.com/1.mp4"),
		"show-episode-2": directResult("B", "https://cdn.example.com/2.mp4"),
	}}
	controller := newTestController(t, resolver, AdPolicy{})
	controller.LoadPlaylist(playlist("show-episode-1", "show-episode-2"))

	controller.SelectEpisode(context.Background(), "show-episode-1")
	waitForState(t, controller, StatePlaying)
	controller.OnMediaEnded()
	waitForState(t, controller, StateAutoAdvancePending)

	controller.AdvanceNow()
	require.Eventually(t, func() bool {
		s := controller.Snapshot()
		return s.State == StatePlaying && s.EpisodeSlug == "show-episode-2"
	}, time.Second, time.Millisecond)
}

func TestDirectLinkGateOneShot(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-1": directResult("A", "https://cdn.example.com/1.mp4"),
	}}
	policy := AdPolicy{
		Enabled:       true,
		DirectLink:    true,
		DirectLinkURL: "https://ads.example.com/dl",
	}
	controller := newTestController(t, resolver, policy)

	// First selection is intercepted and nothing resolves
	gate := controller.SelectEpisode(context.Background(), "show-episode-1")
	require.True(t, gate.Gate)
	require.Equal(t, "https://ads.example.com/dl", gate.RedirectURL)
	require.Equal(t, StateIdle, controller.Snapshot().State)
	require.True(t, controller.Flags().DirectLinkFired)

	// The identical second selection proceeds
	gate = controller.SelectEpisode(context.Background(), "show-episode-1")
	require.False(t, gate.Gate)
	waitForState(t, controller, StatePlaying)
	require.True(t, controller.Snapshot().AdGateTriggered)
}

func TestPrerollGateSurfaced(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-1": directResult("Server 720P", "https://cdn.example.com/1.mp4"),
	}}
	policy := AdPolicy{Enabled: true, Preroll: true, PopunderURL: "https://ads.example.com/pop"}
	controller := newTestController(t, resolver, policy)

	controller.SelectEpisode(context.Background(), "show-episode-1")
	waitForState(t, controller, StatePlaying)

	// Playback starts, but the snapshot carries the preroll redirect
	snapshot := controller.Snapshot()
	require.True(t, snapshot.PlayGate.Gate)
	require.Equal(t, "https://ads.example.com/pop", snapshot.PlayGate.RedirectURL)
	require.True(t, snapshot.AdGateTriggered)
}

func TestNoPrerollGateWithoutPolicy(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-1": directResult("Server 720P", "https://cdn.example.com/1.mp4"),
	}}
	controller := newTestController(t, resolver, AdPolicy{})

	controller.SelectEpisode(context.Background(), "show-episode-1")
	waitForState(t, controller, StatePlaying)
	require.False(t, controller.Snapshot().PlayGate.Gate)
}

func TestPauseGate(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-1": directResult("A", "https://cdn.example.com/1.mp4"),
	}}
	policy := AdPolicy{Enabled: true, PauseAd: true, PopunderURL: "https://ads.example.com/pop"}
	controller := newTestController(t, resolver, policy)

	controller.SelectEpisode(context.Background(), "show-episode-1")
	waitForState(t, controller, StatePlaying)

	gate := controller.Pause()
	require.True(t, gate.Gate)
	require.Equal(t, StatePauseGated, controller.Snapshot().State)
	require.False(t, controller.Resume())

	controller.DismissPauseGate()
	require.Equal(t, StatePlaying, controller.Snapshot().State)
	require.True(t, controller.Resume())
}

func TestPauseWithoutPolicy(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-1": directResult("A", "https://cdn.example.com/1.mp4"),
	}}
	controller := newTestController(t, resolver, AdPolicy{})

	controller.SelectEpisode(context.Background(), "show-episode-1")
	waitForState(t, controller, StatePlaying)

	require.False(t, controller.Pause().Gate)
	require.Equal(t, StatePlaying, controller.Snapshot().State)
	require.True(t, controller.Resume())
}

func TestSelectSource(t *testing.T) {
	resolver := &fakeResolver{results: map[string]resolution{
		"show-episode-1": {
			result: stream.Result{Sources: []stream.Source{
				{Name: "Server 720P", Kind: stream.KindDirect, URL: "https://cdn.example.com/720.mp4"},
				{Name: "NeoStream", Kind: stream.KindEmbedded, URL: "https://embed.example.com/1"},
			}},
			ok: true,
		},
	}}
	controller := newTestController(t, resolver, AdPolicy{})

	controller.SelectEpisode(context.Background(), "show-episode-1")
	waitForState(t, controller, StatePlaying)

	controller.SelectSource(stream.Source{Name: "NeoStream", Kind: stream.KindEmbedded, URL: "https://embed.example.com/1"})
	snapshot := controller.Snapshot()
	require.Equal(t, StateEmbeddedPlaying, snapshot.State)
	require.Equal(t, "NeoStream", snapshot.Source.Name)
}
