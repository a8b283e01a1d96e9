// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/google/subcommands"
	"golang.org/x/net/netutil"

	"github.com/vaibhawvipul/fluvio/lib/logger"
	"github.com/vaibhawvipul/fluvio/mirror"
	"github.com/vaibhawvipul/fluvio/mirror/config"
	"github.com/vaibhawvipul/fluvio/mirror/connector"
	"github.com/vaibhawvipul/fluvio/mirror/lookup"
	"github.com/vaibhawvipul/fluvio/mirror/memlog"
	"github.com/vaibhawvipul/fluvio/mirror/metrics"
	"github.com/vaibhawvipul/fluvio/mirror/replica"
)

// RunCommand starts the remote-to-home mirror controller for a single
// replica, reading its static configuration from a YAML file.
type RunCommand struct {
	// configFile is the path to the RemotePartitionConfig/File YAML.
	configFile string

	// topic and partition identify the local replica being mirrored; in a
	// real SPU process these come from the partition's own assignment,
	// which is out of scope here, so they're given directly.
	topic     string
	partition int

	// isolation selects which leader offset this process mirrors by,
	// overriding the config file's isolation field when non-empty.
	isolation string

	// demoAppend, when positive, appends a synthetic record to the demo
	// leader on this interval so the mirror path can be exercised without
	// a real SPU feeding the log.
	demoAppend time.Duration

	// statusInterval is how often a one-line counters summary is logged.
	statusInterval time.Duration
}

func (*RunCommand) Name() string { return "run" }

func (*RunCommand) Usage() string {
	return `
spumirrord run -config <path> -topic <name> -partition <n> [flags...]

flags:
`
}

func (*RunCommand) Synopsis() string {
	return "runs the remote-to-home mirror controller for one replica"
}

func (r *RunCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.configFile, "config", "", "path to the mirror config YAML")
	f.StringVar(&r.topic, "topic", "", "topic name of the replica being mirrored")
	f.IntVar(&r.partition, "partition", 0, "partition index of the replica being mirrored")
	f.StringVar(&r.isolation, "isolation", "", "read_committed or read_uncommitted; overrides the config file")
	f.DurationVar(&r.demoAppend, "demo-append", 0, "if positive, append a synthetic record to the demo leader on this interval")
	f.DurationVar(&r.statusInterval, "status-interval", time.Minute, "how often to log a counters summary")
}

func (r *RunCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := r.execute(ctx); err != nil {
		logger.LoggerFromContext(ctx).Errorf("%v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (r *RunCommand) execute(ctx context.Context) error {
	if r.configFile == "" || r.topic == "" {
		return fmt.Errorf("-config and -topic are required")
	}

	cfg, err := config.Load(r.configFile)
	if err != nil {
		return err
	}

	isolation := cfg.Isolation
	if r.isolation != "" {
		isolation = r.isolation
	}
	iso := replica.ReadCommitted
	if isolation == "read_uncommitted" {
		iso = replica.ReadUncommitted
	}

	registry := lookup.NewMapRegistry()
	registry.Set(cfg.RemotePartition.HomeCluster, lookup.Home{
		ID:          cfg.RemotePartition.HomeCluster,
		RemoteID:    cfg.RemotePartition.HomeCluster,
		SPUEndpoint: cfg.RemotePartition.HomeSPUEndpoint,
	})

	// The local replica's durable leader is out of scope for this binary
	// (see mirror/replica's package doc); memlog stands in as a demo
	// leader so the binary is runnable end to end without a full SPU.
	key := replica.ReplicaKey{Topic: r.topic, Partition: int32(r.partition)}
	leader := memlog.New(key)

	log := logger.LoggerFromContext(ctx)
	ctrl := mirror.New(leader, registry, connector.NewTCPConnector(), cfg.RemotePartition, cfg.MaxBytes, iso, log)

	if cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("listening on metrics address %q: %w", cfg.MetricsAddr, err)
		}
		// The metrics surface is read-only and tiny; cap its concurrent
		// connections so a scrape storm can't starve the mirror path of
		// file descriptors.
		go func() {
			defer ln.Close()
			srv := &http.Server{Handler: metrics.NewHandler(ctrl.Metrics())}
			log.Infof("metrics listening on %s", ln.Addr())
			if err := srv.Serve(netutil.LimitListener(ln, maxMetricsConns)); err != nil && err != http.ErrServerClosed {
				log.Warningf("metrics server stopped: %v", err)
			}
		}()
	}

	if r.demoAppend > 0 {
		go appendDemoRecords(ctx, leader, r.demoAppend)
	}
	if r.statusInterval > 0 {
		go logStatus(ctx, log, ctrl.Metrics(), r.statusInterval)
	}

	ctrl.Run(ctx)
	return nil
}

const maxMetricsConns = 16

// appendDemoRecords feeds the in-memory demo leader so the sync loop has
// something to mirror.
func appendDemoRecords(ctx context.Context, leader *memlog.Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			leader.Append([]byte(fmt.Sprintf("demo record %d\n", i)))
		}
	}
}

// logStatus periodically emits a one-line summary of the controller's
// counters, the log-file analogue of the /metrics endpoint.
func logStatus(ctx context.Context, log *logger.Logger, m *metrics.Controller, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.Snapshot()
			log.Infof("mirror status: loops=%s connects=%s failures=%s home_leo=%s",
				humanize.Comma(s.LoopCount), humanize.Comma(s.ConnectCount),
				humanize.Comma(s.ConnectFailure), replica.Offset(s.HomeLeo))
		}
	}
}
