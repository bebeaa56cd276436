package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/textloom/loom/pkg/providers"
)

// UnavailableSentinel is bound in place of a downloaded value when the
// fetch fails. Execution continues; a validator downstream may still
// reject the step because of it.
const UnavailableSentinel = "<unavailable>"

// downloadCache memoizes fetches by resolved locator. It is created per
// run, never shared across runs, so a failure sentinel cached here cannot
// leak into an unrelated execution. It stores the raw fetched text;
// postprocessing is applied per declaration.
type downloadCache struct {
	entries map[string]string
}

func newDownloadCache() *downloadCache {
	return &downloadCache{entries: make(map[string]string)}
}

func (c *downloadCache) fetch(ctx context.Context, ret providers.Retriever, url string, log *zap.Logger) string {
	if cached, ok := c.entries[url]; ok {
		return cached
	}
	if ret == nil {
		log.Warn("no retriever configured", zap.String("url", url))
		c.entries[url] = UnavailableSentinel
		return UnavailableSentinel
	}

	text, err := ret.Fetch(ctx, url)
	if err != nil {
		log.Warn("fetch failed, continuing with placeholder",
			zap.String("url", url), zap.Error(err))
		c.entries[url] = UnavailableSentinel
		return UnavailableSentinel
	}
	c.entries[url] = text
	return text
}
