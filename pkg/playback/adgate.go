package playback

// AdPolicy is the monetization configuration, supplied read-only by an
// external settings store.
type AdPolicy struct {
	Enabled       bool   `json:"enabled"`
	Preroll       bool   `json:"preroll"`
	PauseAd       bool   `json:"pauseAd"`
	DirectLink    bool   `json:"directLink"`
	DirectLinkURL string `json:"directLinkUrl"`
	PopunderURL   string `json:"popunderUrl"`
}

// SessionFlags tracks which one-shot gates already fired this session.
// The UI shell owns persistence of these.
type SessionFlags struct {
	DirectLinkFired bool `json:"directLinkFired"`
}

// Action is a requested transition the ad gate is consulted about.
type Action int

const (
	ActionPlay Action = iota
	ActionPause
	ActionEpisodeChange
)

// Gate is the ad gate's verdict. When Gate is true the requested transition
// must first be redirected through RedirectURL.
type Gate struct {
	Gate        bool   `json:"gate"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

// ShouldGate decides whether an action must be redirected through an ad
// first. Pure function: keeping all monetization conditionals here avoids
// duplicating them across every transition call site.
func ShouldGate(action Action, policy AdPolicy, flags SessionFlags) Gate {
	if !policy.Enabled {
		return Gate{}
	}
	switch action {
	case ActionEpisodeChange:
		// One-shot per session: the first episode selection opens the
		// direct link, the second identical request proceeds.
		if policy.DirectLink && !flags.DirectLinkFired && policy.DirectLinkURL != "" {
			return Gate{Gate: true, RedirectURL: policy.DirectLinkURL}
		}
	case ActionPause:
		if policy.PauseAd {
			return Gate{Gate: true, RedirectURL: policy.PopunderURL}
		}
	case ActionPlay:
		if policy.Preroll {
			return Gate{Gate: true, RedirectURL: policy.PopunderURL}
		}
	}
	return Gate{}
}
