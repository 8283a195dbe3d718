package course

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/mind-engage/mindengage-academy/internal/errs"
)

// Provider identifies where a video is hosted.
type Provider string

const (
	ProviderYouTube Provider = "youtube"
	ProviderVimeo   Provider = "vimeo"
	ProviderWistia  Provider = "wistia"
	ProviderLoom    Provider = "loom"
	ProviderDirect  Provider = "direct"
)

type videoHost struct {
	provider Provider
	paths    []*regexp.Regexp
}

const videoID = `[A-Za-z0-9_-]+`

var (
	watchParam = regexp.MustCompile(`^` + videoID + `$`)
	youtubeWeb = videoHost{ProviderYouTube, pathShapes(`^/watch$`, `^/(embed|shorts|live)/`+videoID+`$`)}
	vimeoWeb   = videoHost{ProviderVimeo, pathShapes(`^/([a-z0-9_-]+/)*[0-9]+$`)}
	loomWeb    = videoHost{ProviderLoom, pathShapes(`^/(share|embed)/[0-9a-f]+$`)}
	wistiaWeb  = videoHost{ProviderWistia, pathShapes(`^/(medias|embed/iframe|embed/medias)/` + videoID + `$`)}
)

var hostProviders = map[string]videoHost{
	"youtube.com":      youtubeWeb,
	"www.youtube.com":  youtubeWeb,
	"m.youtube.com":    youtubeWeb,
	"youtu.be":         {ProviderYouTube, pathShapes(`^/` + videoID + `$`)},
	"vimeo.com":        vimeoWeb,
	"player.vimeo.com": {ProviderVimeo, pathShapes(`^/video/[0-9]+$`)},
	"fast.wistia.net":  wistiaWeb,
	"fast.wistia.com":  wistiaWeb,
	"loom.com":         loomWeb,
	"www.loom.com":     loomWeb,
}

func pathShapes(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// matches reports whether u points at a single video on h.
func (h videoHost) matches(u *url.URL) bool {
	p := strings.TrimSuffix(u.Path, "/")
	for _, re := range h.paths {
		if !re.MatchString(p) {
			continue
		}
		if p == "/watch" {
			return watchParam.MatchString(u.Query().Get("v"))
		}
		return true
	}
	return false
}

var directExts = map[string]bool{".mp4": true, ".webm": true, ".m3u8": true}

// ClassifyVideoURL accepts https links to a known video host or to a
// directly playable file and returns the normalized URL.
func ClassifyVideoURL(raw string) (string, Provider, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("video url %q: %w", raw, errs.ErrInvalidInput)
	}
	if u.Scheme != "https" {
		return "", "", fmt.Errorf("video url must use https: %w", errs.ErrInvalidInput)
	}
	host := strings.ToLower(u.Hostname())
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	h, ok := hostProviders[host]
	if !ok && strings.HasSuffix(host, ".wistia.com") {
		h, ok = wistiaWeb, true
	}
	if ok {
		if !h.matches(u) {
			return "", "", fmt.Errorf("video url %q is not a %s video: %w", raw, h.provider, errs.ErrInvalidInput)
		}
		return u.String(), h.provider, nil
	}
	if directExts[strings.ToLower(path.Ext(u.Path))] {
		return u.String(), ProviderDirect, nil
	}
	return "", "", fmt.Errorf("unsupported video host %q: %w", host, errs.ErrInvalidInput)
}
