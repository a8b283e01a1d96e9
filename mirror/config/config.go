// Copyright 2024 The Fluvio Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config holds the static, per-replica configuration the controller
// is given at Run and a YAML loader for cmd/spumirrord.
package config

import (
	"crypto/tls"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RemotePartitionConfig is static for the controller's lifetime.
type RemotePartitionConfig struct {
	HomeCluster     string `yaml:"home_cluster"`
	HomeSPUEndpoint string `yaml:"home_spu_endpoint"`
	HomeSPUID       int    `yaml:"home_spu_id"`

	// TLS, when non-nil, selects TLS for the Connector's dial and is
	// reported back as the connection's tls flag. Nil disables TLS, which
	// is how every current deployment runs.
	TLS *tls.Config `yaml:"-"`
}

// File is the on-disk shape loaded by cmd/spumirrord; TLS is not
// YAML-configurable here (certificate material belongs in a secrets store,
// not a plaintext config file) and must be set programmatically after Load.
type File struct {
	RemotePartition RemotePartitionConfig `yaml:"remote_partition"`
	MaxBytes        int                   `yaml:"max_bytes"`
	Isolation       string                `yaml:"isolation"`
	MetricsAddr     string                `yaml:"metrics_addr"`
}

// Load reads and parses a File from path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	if f.MaxBytes <= 0 {
		f.MaxBytes = 1 << 20
	}
	return f, nil
}
