package stream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// EmbedProber fetches an embedded-frame page and scrapes a direct media URL
// out of it. Many embed hosts just wrap a plain <video> element, and a
// native media element gives the player far more control than a frame.
type EmbedProber struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewEmbedProber(timeout time.Duration, logger *zap.Logger) *EmbedProber {
	return &EmbedProber{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ProbeEmbed returns the first direct media URL found on the embed page.
func (p *EmbedProber) ProbeEmbed(ctx context.Context, embedURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", embedURL, nil)
	if err != nil {
		return "", fmt.Errorf("Couldn't create GET request: %v", err)
	}
	res, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Couldn't GET %v: %v", embedURL, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Bad GET response: %v", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", fmt.Errorf("Couldn't load the HTML in goquery: %v", err)
	}

	var mediaURL string
	doc.Find("video source, video, iframe").EachWithBreak(func(i int, s *goquery.Selection) bool {
		src, ok := s.Attr("src")
		if ok && src != "" && ClassifyURL(src) == KindDirect {
			mediaURL = src
			return false
		}
		return true
	})
	if mediaURL == "" {
		return "", fmt.Errorf("No direct media URL found on embed page")
	}
	p.logger.Debug("Upgraded embed to direct media", zap.String("embedURL", embedURL), zap.String("mediaURL", mediaURL))
	return mediaURL, nil
}
