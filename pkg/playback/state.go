package playback

import (
	"github.com/kaizorxxx/novastream/pkg/stream"
)

// State is the playback session state. Every state has an exit transition;
// there is no fatal state reachable from normal operation.
type State string

const (
	// StateIdle means no episode is selected.
	StateIdle State = "idle"
	// StateLoading means a stream resolution is in flight.
	StateLoading State = "loading"
	// StatePlaying means a direct-media source is playing natively.
	StatePlaying State = "playing"
	// StateEmbeddedPlaying means the source is rendered in a frame.
	StateEmbeddedPlaying State = "embeddedPlaying"
	// StateError means stream resolution failed. Recoverable: select again.
	StateError State = "error"
	// StatePauseGated means resumption is blocked behind a pause ad.
	StatePauseGated State = "pauseGated"
	// StateAutoAdvancePending means the end-of-episode countdown is running.
	StateAutoAdvancePending State = "autoAdvancePending"
	// StateFinished means the last episode ended.
	StateFinished State = "finished"
)

// Snapshot is a read-only copy of the current session for rendering.
// PlayGate carries the preroll verdict for this session's play, so the UI
// can open the redirect alongside starting playback.
type Snapshot struct {
	EpisodeSlug     string                `json:"episodeSlug"`
	State           State                 `json:"state"`
	Source          stream.Source         `json:"source"`
	Sources         []stream.Source       `json:"sources"`
	Downloads       []stream.DownloadLink `json:"downloads"`
	AdGateTriggered bool                  `json:"adGateTriggered"`
	PlayGate        Gate                  `json:"playGate"`
	Countdown       int                   `json:"countdown"`
	NextEpisodeSlug string                `json:"nextEpisodeSlug,omitempty"`
}

// session is the mutable per-episode state, exclusively owned by one
// Controller and replaced wholesale on episode change. The generation ties
// async resolution results to the session they were requested for.
type session struct {
	episodeSlug     string
	state           State
	source          stream.Source
	sources         []stream.Source
	downloads       []stream.DownloadLink
	adGateTriggered bool
	playGate        Gate
	countdown       int
	generation      uint64
}

func (s *session) snapshot(next string) Snapshot {
	if s == nil {
		return Snapshot{State: StateIdle}
	}
	return Snapshot{
		EpisodeSlug:     s.episodeSlug,
		State:           s.state,
		Source:          s.source,
		Sources:         s.sources,
		Downloads:       s.downloads,
		AdGateTriggered: s.adGateTriggered,
		PlayGate:        s.playGate,
		Countdown:       s.countdown,
		NextEpisodeSlug: next,
	}
}
