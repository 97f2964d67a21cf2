package ics

import (
	"context"
	"os"
	"strings"
)

// Loader decodes a calendar from a local path or an http(s) URL.
type Loader struct {
	fetcher *Fetcher
}

// NewLoader returns a Loader whose URL downloads go through fetcher. A nil
// fetcher gets one without disk cache.
func NewLoader(fetcher *Fetcher) *Loader {
	if fetcher == nil {
		fetcher = NewFetcher("")
	}
	return &Loader{fetcher: fetcher}
}

// Load reads and decodes the calendar at location.
func (l *Loader) Load(ctx context.Context, location string) ([]Record, error) {
	var (
		body []byte
		err  error
	)
	if IsURL(location) {
		body, err = l.fetcher.Fetch(ctx, location)
	} else {
		body, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, err
	}
	return Decode(location, body)
}

// IsURL reports whether location should be fetched over HTTP.
func IsURL(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
