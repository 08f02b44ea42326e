// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probe fetches and parses RTMP publish statistics for a named
// application/stream pair.
package probe

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/loopcast/loopcast/internal/log"
	"github.com/rs/zerolog"
)

// DefaultTimeout is the total request budget for one sample, per spec.md §4.1.
const DefaultTimeout = 1500 * time.Millisecond

// ErrProbeFailure wraps network, HTTP-status, and XML-parse failures. The
// decider treats every ErrProbeFailure identically to an absent stream.
var ErrProbeFailure = errors.New("stats probe failed")

// StreamSample is a single observation of the named stream.
type StreamSample struct {
	Exists      bool
	Publishing  bool
	VideoBwBps  int64
	ClientCount int
	Clients     []ClientInfo
}

// ClientInfo is an optional per-publisher diagnostic record, consumed for
// logging only (spec.md §6's optional <client> children).
type ClientInfo struct {
	Address    string
	Publishing bool
}

// Healthy reports whether the sample meets the configured minimum bitrate,
// per spec.md §3's derived healthy attribute.
func (s StreamSample) Healthy(minBitrateKbps int) bool {
	if !s.Exists || !s.Publishing {
		return false
	}
	kbps := s.VideoBwBps * 8 / 1000
	return kbps >= int64(minBitrateKbps)
}

// Prober fetches a fresh StreamSample from a configured stats endpoint.
type Prober struct {
	url        string
	appName    string
	streamName string
	http       *http.Client
	log        zerolog.Logger
}

// New constructs a Prober against statsURL, scoped to one application/stream.
func New(statsURL, appName, streamName string) *Prober {
	return &Prober{
		url:        statsURL,
		appName:    appName,
		streamName: streamName,
		http:       &http.Client{Timeout: DefaultTimeout},
		log:        log.WithComponent("probe"),
	}
}

// Sample fetches and parses the current stream statistics. It never caches:
// every call issues a fresh request. Any network, status, or parse failure
// is wrapped in ErrProbeFailure; the caller should treat it as "not healthy".
func (p *Prober) Sample(ctx context.Context) (StreamSample, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return StreamSample{}, fmt.Errorf("%w: build request: %w", ErrProbeFailure, err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		p.log.Warn().Err(err).Str("url", p.url).Msg("stats probe request failed")
		return StreamSample{}, fmt.Errorf("%w: %w", ErrProbeFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.log.Warn().Int("status", resp.StatusCode).Msg("stats probe non-2xx response")
		return StreamSample{}, fmt.Errorf("%w: status %d", ErrProbeFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return StreamSample{}, fmt.Errorf("%w: read body: %w", ErrProbeFailure, err)
	}

	var doc statsDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		p.log.Warn().Err(err).Msg("stats probe malformed XML")
		return StreamSample{}, fmt.Errorf("%w: parse xml: %w", ErrProbeFailure, err)
	}

	sample := p.extract(doc)
	if !sample.Exists {
		return sample, nil
	}

	for _, c := range sample.Clients {
		if !c.Publishing {
			p.log.Debug().Str("address", c.Address).Msg("publisher client not actively publishing")
		}
	}
	return sample, nil
}

func (p *Prober) extract(doc statsDocument) StreamSample {
	for _, app := range doc.Applications {
		if app.Name != p.appName {
			continue
		}
		for _, st := range app.Streams {
			if st.Name != p.streamName {
				continue
			}
			return sampleFromWire(st)
		}
	}
	return StreamSample{}
}

func sampleFromWire(st wireStream) StreamSample {
	clients := make([]ClientInfo, 0, len(st.Clients))
	for _, c := range st.Clients {
		clients = append(clients, ClientInfo{
			Address:    c.Address,
			Publishing: parsePublishing(c.Publishing, 0),
		})
	}

	nclients := parseIntDefault(st.NClients, 0)
	publishing := parsePublishing(st.Publishing, nclients)

	return StreamSample{
		Exists:      true,
		Publishing:  publishing,
		VideoBwBps:  int64(parseIntDefault(st.BWVideo, 0)),
		ClientCount: nclients,
		Clients:     clients,
	}
}

// parsePublishing implements spec.md §4.1's parsing rule: true if the text is
// one of {"active","1","true","on"} case-insensitive, or if nclients >= 1.
func parsePublishing(text string, nclients int) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "active", "1", "true", "on":
		return true
	}
	return nclients >= 1
}

func parseIntDefault(text string, def int) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return def
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return def
	}
	return n
}

// statsDocument mirrors the <server>/<application>/<stream> wire shape of
// spec.md §6's consumed XML document.
type statsDocument struct {
	XMLName      xml.Name  `xml:"server"`
	Applications []wireApp `xml:"application"`
}

type wireApp struct {
	Name    string       `xml:"name"`
	Streams []wireStream `xml:"stream"`
}

type wireStream struct {
	Name       string       `xml:"name"`
	Publishing string       `xml:"publishing"`
	BWVideo    string       `xml:"bw_video"`
	NClients   string       `xml:"nclients"`
	Clients    []wireClient `xml:"client"`
}

type wireClient struct {
	Address    string `xml:"address"`
	Publishing string `xml:"publishing"`
}
