package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kaizorxxx/novastream/pkg/catalog"
	"github.com/kaizorxxx/novastream/pkg/stream"
)

// Resolver resolves candidate video sources for an episode slug
// (implemented by stream.Resolver).
type Resolver interface {
	Resolve(ctx context.Context, episodeSlug string) (stream.Result, bool)
}

type ControllerOptions struct {
	// Seconds the end-of-episode countdown starts from.
	AutoAdvanceSeconds int
	// Substring that marks the preferred source name, e.g. "720".
	QualityMarker string
	// Countdown tick interval. Tests shorten this; it's one second in
	// production.
	TickInterval time.Duration
}

func NewControllerOpts(autoAdvanceSeconds int, qualityMarker string) ControllerOptions {
	return ControllerOptions{
		AutoAdvanceSeconds: autoAdvanceSeconds,
		QualityMarker:      qualityMarker,
	}
}

var DefaultControllerOpts = ControllerOptions{
	AutoAdvanceSeconds: 10,
	TickInterval:       time.Second,
}

// Controller is the playback state machine for one viewing session. It owns
// its session state exclusively: all mutation goes through its event
// methods, and the UI renders from Snapshot.
//
// Only one episode selection is ever applied at a time. A new selection
// bumps the session generation, so a resolution that finishes late for a
// superseded selection is discarded instead of clobbering the newer one.
type Controller struct {
	mu       sync.Mutex
	resolver Resolver
	policy   AdPolicy
	flags    SessionFlags
	opts     ControllerOptions
	playlist []catalog.EpisodeRef
	sess     *session
	// Monotonic selection counter; the live session carries its value.
	generation uint64
	timer      *time.Timer
	logger     *zap.Logger
}

// NewController creates a Controller. flags carry the one-shot gate state
// persisted by the UI shell across reloads.
func NewController(opts ControllerOptions, resolver Resolver, policy AdPolicy, flags SessionFlags, logger *zap.Logger) (*Controller, error) {
	if resolver == nil {
		return nil, errors.New("resolver must not be nil")
	}
	if opts.AutoAdvanceSeconds <= 0 {
		opts.AutoAdvanceSeconds = DefaultControllerOpts.AutoAdvanceSeconds
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultControllerOpts.TickInterval
	}
	return &Controller{
		resolver: resolver,
		policy:   policy,
		flags:    flags,
		opts:     opts,
		logger:   logger,
	}, nil
}

// LoadPlaylist sets the episode list auto-advance walks through. The list
// is sorted by episode number before use.
func (c *Controller) LoadPlaylist(episodes []catalog.EpisodeRef) {
	sorted := make([]catalog.EpisodeRef, len(episodes))
	copy(sorted, episodes)
	catalog.SortEpisodes(sorted)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlist = sorted
}

// SelectEpisode starts a new session for the episode. When the direct-link
// gate fires, no resolution happens: the returned Gate carries the redirect
// URL and a second identical call proceeds.
// A selection issued while a previous one is still resolving supersedes it.
func (c *Controller) SelectEpisode(ctx context.Context, episodeSlug string) Gate {
	c.mu.Lock()
	defer c.mu.Unlock()

	gate := ShouldGate(ActionEpisodeChange, c.policy, c.flags)
	if gate.Gate {
		c.flags.DirectLinkFired = true
		c.logger.Debug("Episode selection gated by direct link", zap.String("episodeSlug", episodeSlug))
		return gate
	}

	c.selectLocked(ctx, episodeSlug)
	return Gate{}
}

// selectLocked replaces the session and kicks off an async resolution.
func (c *Controller) selectLocked(ctx context.Context, episodeSlug string) {
	c.stopTimerLocked()
	c.generation++
	generation := c.generation
	c.sess = &session{
		episodeSlug:     episodeSlug,
		state:           StateLoading,
		adGateTriggered: c.flags.DirectLinkFired,
		generation:      generation,
	}
	c.logger.Debug("Selecting episode", zap.String("episodeSlug", episodeSlug), zap.Uint64("generation", generation))

	go func() {
		result, ok := c.resolver.Resolve(ctx, episodeSlug)
		c.applyResolution(generation, result, ok)
	}()
}

func (c *Controller) applyResolution(generation uint64, result stream.Result, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil || c.sess.generation != generation {
		// A newer selection superseded this one while it was in flight.
		c.logger.Debug("Discarding stale resolution", zap.Uint64("generation", generation))
		return
	}
	if !ok {
		c.sess.state = StateError
		c.logger.Warn("Stream resolution failed", zap.String("episodeSlug", c.sess.episodeSlug))
		return
	}

	// Consult the preroll gate before committing the play. Playback still
	// starts; the verdict rides on the snapshot for the UI to act on.
	if gate := ShouldGate(ActionPlay, c.policy, c.flags); gate.Gate {
		c.sess.playGate = gate
		c.sess.adGateTriggered = true
		c.logger.Debug("Play gated by preroll", zap.String("episodeSlug", c.sess.episodeSlug))
	}

	source, _ := stream.Preferred(result.Sources, c.opts.QualityMarker)
	c.sess.sources = result.Sources
	c.sess.downloads = result.Downloads
	c.applySourceLocked(source)
}

func (c *Controller) applySourceLocked(source stream.Source) {
	c.sess.source = source
	if source.Kind == stream.KindDirect {
		c.sess.state = StatePlaying
	} else {
		c.sess.state = StateEmbeddedPlaying
	}
	c.logger.Debug("Playing source", zap.String("sourceName", source.Name), zap.String("kind", string(source.Kind)), zap.String("state", string(c.sess.state)))
}

// SelectSource switches the session to another of the resolved sources.
func (c *Controller) SelectSource(source stream.Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.sess.state == StateLoading {
		return
	}
	c.stopTimerLocked()
	c.applySourceLocked(source)
}

// OnMediaErrored handles a load/decode error from the player. A direct
// source falls back to frame rendering with the same URL: many upstream
// "direct" URLs only fail cross-origin inside a native media element.
func (c *Controller) OnMediaErrored() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return
	}
	switch c.sess.state {
	case StatePlaying:
		c.sess.source.Kind = stream.KindEmbedded
		c.sess.state = StateEmbeddedPlaying
		c.logger.Debug("Direct playback failed, degrading to embedded frame", zap.String("url", c.sess.source.URL))
	case StateEmbeddedPlaying:
		c.sess.state = StateError
		c.logger.Warn("Embedded playback failed", zap.String("url", c.sess.source.URL))
	}
}

// OnMediaEnded starts the auto-advance countdown, or finishes the session
// when there is no next episode.
func (c *Controller) OnMediaEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || (c.sess.state != StatePlaying && c.sess.state != StateEmbeddedPlaying) {
		return
	}

	next, ok := c.nextEpisodeLocked()
	if !ok {
		c.sess.state = StateFinished
		c.logger.Debug("Last episode ended", zap.String("episodeSlug", c.sess.episodeSlug))
		return
	}
	c.sess.state = StateAutoAdvancePending
	c.sess.countdown = c.opts.AutoAdvanceSeconds
	c.logger.Debug("Auto-advance countdown started", zap.String("nextEpisodeSlug", next), zap.Int("countdown", c.sess.countdown))
	c.armTimerLocked(c.sess.generation)
}

func (c *Controller) armTimerLocked(generation uint64) {
	c.timer = time.AfterFunc(c.opts.TickInterval, func() {
		c.tick(generation)
	})
}

func (c *Controller) tick(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.sess.generation != generation || c.sess.state != StateAutoAdvancePending {
		return
	}
	c.sess.countdown--
	if c.sess.countdown > 0 {
		c.armTimerLocked(generation)
		return
	}
	c.advanceLocked()
}

// advanceLocked moves to the next episode. The direct-link gate is not
// consulted: auto-advance continues a session that already got past it.
func (c *Controller) advanceLocked() {
	next, ok := c.nextEpisodeLocked()
	if !ok {
		c.sess.state = StateFinished
		return
	}
	c.selectLocked(context.Background(), next)
}

// AdvanceNow skips the rest of the countdown ("play now").
func (c *Controller) AdvanceNow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.sess.state != StateAutoAdvancePending {
		return
	}
	c.stopTimerLocked()
	c.advanceLocked()
}

// CancelAutoAdvance stops the countdown without advancing. The media already
// ended, so the session settles in Finished rather than back in a playing
// state; selecting an episode starts a fresh session.
func (c *Controller) CancelAutoAdvance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.sess.state != StateAutoAdvancePending {
		return
	}
	c.stopTimerLocked()
	c.sess.countdown = 0
	c.sess.state = StateFinished
	c.logger.Debug("Auto-advance cancelled", zap.String("episodeSlug", c.sess.episodeSlug))
}

// Pause handles a pause event. With the pause ad enabled the session moves
// to PauseGated and stays there until DismissPauseGate.
func (c *Controller) Pause() Gate {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.sess.state != StatePlaying {
		return Gate{}
	}
	gate := ShouldGate(ActionPause, c.policy, c.flags)
	if gate.Gate {
		c.sess.state = StatePauseGated
		c.sess.adGateTriggered = true
	}
	return gate
}

// Resume reports whether playback may continue. It stays blocked while the
// pause gate is up.
func (c *Controller) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return false
	}
	return c.sess.state != StatePauseGated
}

// DismissPauseGate lifts the pause gate and returns to playing.
func (c *Controller) DismissPauseGate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.sess.state != StatePauseGated {
		return
	}
	c.sess.state = StatePlaying
}

// Snapshot returns a read-only copy of the current session for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, _ := c.nextEpisodeLocked()
	return c.sess.snapshot(next)
}

// Flags returns the current one-shot gate flags so the UI shell can persist
// them.
func (c *Controller) Flags() SessionFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

// Close disposes the countdown timer. Call when the mounting component
// unmounts.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.sess = nil
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) nextEpisodeLocked() (string, bool) {
	if c.sess == nil {
		return "", false
	}
	for i, episode := range c.playlist {
		if episode.Slug == c.sess.episodeSlug {
			if i+1 < len(c.playlist) {
				return c.playlist[i+1].Slug, true
			}
			return "", false
		}
	}
	return "", false
}
