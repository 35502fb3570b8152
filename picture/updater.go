// Package picture attaches Wikipedia thumbnail urls to entities so a
// graph browser can show an image next to the medical terms.
package picture

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/graphmed/graphmed/helper"
)

// DefaultSummaryURL is the Chinese Wikipedia page summary endpoint.
const DefaultSummaryURL = "https://zh.wikipedia.org/api/rest_v1/page/summary/"

const (
	maxFetchAttempts = 3
	requestTimeout   = 10 * time.Second
	userAgent        = "graphmed/1.0 (knowledge graph image updater)"
)

// Store is the graph access the updater needs.
type Store interface {
	ListEntityLabels(ctx context.Context) ([]string, error)
	SelectEntityIDsByLabel(ctx context.Context, label string) ([]string, error)
	SetImageURL(ctx context.Context, id string, imageURL string) error
}

// Stats counts the outcomes of one label run.
type Stats struct {
	Total    int
	Success  int
	NotFound int
	Failed   int
}

// Updater looks up every entity name on Wikipedia and stores the page
// thumbnail url on the node.
type Updater struct {
	store      Store
	client     *http.Client
	summaryURL string
	delay      time.Duration
	backoff    time.Duration
	log        *slog.Logger
}

// NewUpdater creates a new image updater against the real Wikipedia API.
func NewUpdater(store Store, logger *slog.Logger) (*Updater, error) {
	return newUpdater(store, DefaultSummaryURL, time.Second, time.Second, logger)
}

func newUpdater(store Store, summaryURL string, delay time.Duration, backoff time.Duration, logger *slog.Logger) (*Updater, error) {
	if store == nil {
		return nil, helper.NewError("image updater validation", fmt.Errorf("store is nil"))
	}

	return &Updater{
		store:      store,
		client:     &http.Client{Timeout: requestTimeout},
		summaryURL: summaryURL,
		delay:      delay,
		backoff:    backoff,
		log:        logger,
	}, nil
}

// Labels returns the concrete entity labels available for processing.
func (u *Updater) Labels(ctx context.Context) ([]string, error) {
	return u.store.ListEntityLabels(ctx)
}

// ProcessLabel fetches an image for every entity with the given label.
// Entities without a Wikipedia page are counted but left untouched.
// Requests are spaced by the configured delay.
func (u *Updater) ProcessLabel(ctx context.Context, label string) (Stats, error) {
	ids, err := u.store.SelectEntityIDsByLabel(ctx, label)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(ids)}
	for i, id := range ids {
		if i > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(u.delay):
			}
		}

		imageURL, err := u.fetchImageURL(ctx, id)
		if err != nil {
			stats.Failed++
			u.log.Warn("Image lookup failed",
				slog.String("entity", id),
				slog.String("error", err.Error()))
			continue
		}
		if imageURL == "" {
			stats.NotFound++
			continue
		}

		err = u.store.SetImageURL(ctx, id, imageURL)
		if err != nil {
			stats.Failed++
			u.log.Warn("Storing image url failed",
				slog.String("entity", id),
				slog.String("error", err.Error()))
			continue
		}
		stats.Success++
	}

	u.log.Info("Processed label",
		slog.String("label", label),
		slog.Int("total", stats.Total),
		slog.Int("success", stats.Success),
		slog.Int("notFound", stats.NotFound),
		slog.Int("failed", stats.Failed))

	return stats, nil
}

// pageSummary is the part of the Wikipedia summary response we read.
type pageSummary struct {
	Thumbnail struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
}

// fetchImageURL asks Wikipedia for the page summary of the term. Server
// errors are retried with exponential backoff, a missing page or a page
// without thumbnail returns an empty url.
func (u *Updater) fetchImageURL(ctx context.Context, term string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<(attempt-1)) * u.backoff
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		request, err := http.NewRequestWithContext(ctx, http.MethodGet, u.summaryURL+url.PathEscape(term), nil)
		if err != nil {
			return "", helper.NewError("build summary request", err)
		}
		request.Header.Set("User-Agent", userAgent)

		response, err := u.client.Do(request)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(response.Body)
		response.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case response.StatusCode == http.StatusOK:
			summary := pageSummary{}
			if err := json.Unmarshal(body, &summary); err != nil {
				return "", helper.NewError("parse summary response", err)
			}
			return summary.Thumbnail.Source, nil
		case response.StatusCode >= 500:
			lastErr = fmt.Errorf("server error %v", response.StatusCode)
			continue
		default:
			// 404 and other client errors mean no page for this term.
			return "", nil
		}
	}

	return "", helper.NewError("fetch image url", lastErr)
}
