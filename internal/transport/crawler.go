// Package transport implements the three fetch mechanisms that bring remote
// forecast files into local staging: an HTTP directory-listing crawler, an
// SFTP client for the GBMC server, and a client for the ECMWF open-data API.
//
// All three share the same failure policy: a file that cannot be fetched is
// logged and left missing for the next sync cycle, never fatal to the batch,
// and a download that completes undersized or partial is deleted rather than
// promoted to storage.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Crawler walks an HTTP directory listing recursively and downloads matching
// dataset files by streaming them to disk.
type Crawler struct {
	client *http.Client
	logger *slog.Logger
	// maxDepth bounds the directory recursion; mirrors are laid out
	// <source>/<year>/<month>/, so a handful of levels suffices.
	maxDepth int
}

// NewCrawler creates a crawler with the given HTTP client. Pass nil to use a
// default client; transports without an explicit timeout inherit the
// caller's context deadline.
func NewCrawler(client *http.Client, logger *slog.Logger) *Crawler {
	if client == nil {
		client = &http.Client{}
	}
	return &Crawler{client: client, logger: logger, maxDepth: 6}
}

// Crawl recursively lists pageURL and returns every link ending in ext.
// Only same-origin subdirectory links are followed; parent-directory links
// are skipped. A page that fails to load is logged and treated as empty
// rather than failing the crawl.
func (c *Crawler) Crawl(ctx context.Context, pageURL, ext string) ([]string, error) {
	links := map[string]bool{}
	if err := c.crawl(ctx, pageURL, ext, links, 0); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(links))
	for l := range links {
		out = append(out, l)
	}
	// Newest first: mirror layouts sort lexically by date.
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

func (c *Crawler) crawl(ctx context.Context, pageURL, ext string, links map[string]bool, depth int) error {
	if depth > c.maxDepth {
		return nil
	}
	// Autoindex pages link subdirectories with relative hrefs ("2024/").
	// Those must resolve against the directory itself, not its parent, so
	// the resolution base always carries a trailing slash.
	base, err := url.Parse(strings.TrimSuffix(pageURL, "/") + "/")
	if err != nil {
		return fmt.Errorf("parse crawl url %q: %w", pageURL, err)
	}
	dirURL := base.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fmt.Errorf("create crawl request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("failed to crawl listing", "url", pageURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("failed to crawl listing", "url", pageURL, "status", resp.StatusCode)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		c.logger.Warn("failed to parse listing", "url", pageURL, "error", err)
		return nil
	}

	var subdirs []string
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" || strings.Contains(href, "../") {
			return
		}
		ref, err := base.Parse(href)
		if err != nil || ref.Host != base.Host {
			return
		}
		link := ref.String()
		switch {
		case strings.HasSuffix(link, ext):
			links[link] = true
		case strings.HasSuffix(link, "/") && strings.HasPrefix(link, dirURL) && link != dirURL:
			subdirs = append(subdirs, link)
		}
	})

	for _, sub := range subdirs {
		if err := c.crawl(ctx, strings.TrimSuffix(sub, "/"), ext, links, depth+1); err != nil {
			return err
		}
	}
	c.logger.Info("crawled data file listing", "url", pageURL, "total", len(links))
	return nil
}

// Download streams the file at link into dest. A non-200 response or
// transport failure removes any partial file and returns an error the
// caller treats as "not available this cycle".
func (c *Crawler) Download(ctx context.Context, link, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", link, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("stream %s to %s: %w", link, dest, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("close %s: %w", dest, err)
	}
	c.logger.Info("finished download", "url", link, "dest", dest)
	return nil
}
