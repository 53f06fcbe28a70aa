package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sewaa/forecast-sync/internal/domain"
)

// DefaultOpenDataURL is the public ECMWF open-data endpoint.
const DefaultOpenDataURL = "https://data.ecmwf.int/forecasts"

// OpenData downloads IFS ensemble runs from the ECMWF open-data API. Each
// request carries a fixed retry budget; on final failure any partial target
// file is deleted so a truncated grib2 can never be mistaken for a cached
// download.
type OpenData struct {
	BaseURL    string
	Model      string // "ifs"
	Resolution string // "0p25"
	Stream     string // "enfo"
	Client     *http.Client
	Retries    int
	Logger     *slog.Logger
	Clock      clockwork.Clock
}

// NewOpenData creates a client with the operational defaults.
func NewOpenData(logger *slog.Logger) *OpenData {
	return &OpenData{
		BaseURL:    DefaultOpenDataURL,
		Model:      "ifs",
		Resolution: "0p25",
		Stream:     "enfo",
		Client:     &http.Client{},
		Retries:    10,
		Logger:     logger,
		Clock:      clockwork.NewRealClock(),
	}
}

// urlFor builds the open-data URL for one forecast step of the 00z cycle.
func (c *OpenData) urlFor(initDate time.Time, step int) string {
	return fmt.Sprintf("%s/%s/00z/%s/%s/%s/%s",
		c.BaseURL, initDate.Format("20060102"), c.Model, c.Resolution, c.Stream,
		domain.ECMWFGribName(initDate, step, c.Stream))
}

// Latest probes for the most recent published forecast date, walking back a
// few days from today. Publication lags the init time by several hours, so
// "today" routinely probes missing.
func (c *OpenData) Latest(ctx context.Context, firstStep int) (time.Time, error) {
	now := c.Clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for back := 0; back <= 3; back++ {
		date := today.AddDate(0, 0, -back)
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.urlFor(date, firstStep), nil)
		if err != nil {
			return time.Time{}, fmt.Errorf("create probe request: %w", err)
		}
		resp, err := c.Client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return time.Time{}, ctx.Err()
			}
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("no published forecast found within 3 days of %s", today.Format("2006-01-02"))
}

// Download fetches one forecast step into dest, retrying up to the
// configured budget. The last error is returned once the budget is spent.
func (c *OpenData) Download(ctx context.Context, initDate time.Time, step int, dest string) error {
	link := c.urlFor(initDate, step)
	retries := max(c.Retries, 1)
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.tryDownload(ctx, link, dest); err != nil {
			lastErr = err
			c.Logger.Error("open-data download failed",
				"url", link, "attempt", attempt+1, "error", err)
			continue
		}
		c.Logger.Info("downloaded open-data forecast step", "url", link, "dest", dest)
		return nil
	}
	return fmt.Errorf("download %s after %d attempts: %w", link, retries, lastErr)
}

func (c *OpenData) tryDownload(ctx context.Context, link, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		os.Remove(dest)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		os.Remove(dest)
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}
