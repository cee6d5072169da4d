package main

import (
	"fmt"
	"time"

	"github.com/oc-sync/davsync/internal/blacklist"
	"github.com/oc-sync/davsync/internal/config"
	"github.com/oc-sync/davsync/internal/engine"
	"github.com/oc-sync/davsync/internal/fsabs"
	"github.com/oc-sync/davsync/internal/journal"
	"github.com/oc-sync/davsync/internal/remote"
	"github.com/oc-sync/davsync/internal/remote/reqtransport"
)

// pairing bundles everything one CLI invocation needs against a single
// config, so run/status/journal/selective-sync share the exact same
// wiring instead of each reimplementing it.
type pairing struct {
	cfg       *config.Config
	journal   *journal.Journal
	client    *remote.Client
	blacklist *blacklist.Blacklist
}

func openPairing(cfg *config.Config) (*pairing, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureLocalRoot(); err != nil {
		return nil, fmt.Errorf("ensure local root: %w", err)
	}

	j := journal.New(cfg.JournalPath())
	if err := j.Open(); err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	opts := cfg.Options()
	transport := reqtransport.New(cfg.RemoteURL,
		reqtransport.WithTimeout(opts.HTTPTimeout),
		reqtransport.WithBasicAuth(cfg.Username, cfg.Password),
		reqtransport.WithUserAgent("davsync"),
	)

	return &pairing{
		cfg:       cfg,
		journal:   j,
		client:    remote.New(transport),
		blacklist: blacklist.New(j),
	}, nil
}

func (p *pairing) Close() error {
	return p.journal.Close()
}

// newEngine builds an Engine wired against this pairing's journal, client,
// and blacklist, ready for RunSync or Start.
func (p *pairing) newEngine(watch bool, interval time.Duration) (*engine.Engine, error) {
	ignore := fsabs.NewIgnoreList(p.cfg.LocalRoot)
	ignore.Load()
	checksums, err := fsabs.NewChecksumCache(1024)
	if err != nil {
		return nil, fmt.Errorf("create checksum cache: %w", err)
	}

	return &engine.Engine{
		LocalRoot:    p.cfg.LocalRoot,
		RemoteRoot:   p.cfg.RemoteRoot,
		Client:       p.client,
		Journal:      p.journal,
		Blacklist:    p.blacklist,
		Ignore:       ignore,
		Checksums:    checksums,
		Options:      p.cfg.Options(),
		Interval:     interval,
		WatchEnabled: watch,
	}, nil
}
