package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"prowfetch/internal/config"
)

// Translator converts a web-facing artifact URL of the form
// scheme://host/<gateway-prefix>/<bucket>/<path...> into an object-storage
// URI storage-scheme://<bucket>/<path...>. It is pure and deterministic, and
// it rejects anything that does not match the expected shape rather than
// guessing at a storage location.
type Translator struct {
	prefix string
	scheme string
}

// NewTranslator builds a Translator from config (gateway prefix segment and
// target storage scheme).
func NewTranslator(conf *config.PFConfig) Translator {
	return Translator{
		prefix: conf.Crawler.GatewayPrefix,
		scheme: conf.Crawler.StorageScheme,
	}
}

// Translate maps an absolute artifact URL to a storage URI, stripping any
// trailing path separator.
func (t Translator) Translate(artifactURL string) (string, error) {
	u, err := url.Parse(artifactURL)
	if err != nil {
		return "", fmt.Errorf("artifact URL %q is not a valid URL: %w", artifactURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("artifact URL %q is not absolute", artifactURL)
	}

	segments := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if len(segments) < 2 || segments[0] != t.prefix {
		return "", fmt.Errorf("artifact URL %q does not start with the %q gateway prefix", artifactURL, t.prefix)
	}

	rest := strings.TrimSuffix(segments[1], "/")
	if rest == "" {
		return "", fmt.Errorf("artifact URL %q has no bucket path after the gateway prefix", artifactURL)
	}

	return t.scheme + "://" + rest, nil
}
