// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Fantom-foundation/statediff/common"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const ErrInvalidConfig = common.ConstError("invalid configuration")

// Supported archive backends.
const (
	BackendLevelDb = "ldb"
	BackendSqlite  = "sqlite"
)

// Service is the configuration of the state diff RPC service.
type Service struct {
	Archive Archive `yaml:"archive"`
	HTTP    HTTP    `yaml:"http"`
	Log     Log     `yaml:"log"`
}

type Archive struct {
	Backend   string `yaml:"backend"`
	Directory string `yaml:"directory"`
	CacheSize int    `yaml:"cache_size"` // worlds kept in memory, 0 disables caching
}

type HTTP struct {
	Address string `yaml:"address"`
}

type Log struct {
	Level  string `yaml:"level"`
	Filter string `yaml:"filter"`
}

func Default() Service {
	return Service{
		Archive: Archive{Backend: BackendLevelDb, CacheSize: 16},
		HTTP:    HTTP{Address: "localhost:8645"},
		Log:     Log{Level: zerolog.InfoLevel.String()},
	}
}

// Load reads a YAML configuration file. Values missing in the file keep
// their defaults.
func Load(path string) (Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Service{}, fmt.Errorf("can't read config %s; %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Service{}, fmt.Errorf("can't parse config %s; %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML configuration on top of the defaults. Unknown keys
// are rejected.
func Parse(data []byte) (Service, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Service{}, err
	}
	return cfg, nil
}

// Check validates the configuration.
func (s *Service) Check() error {
	switch s.Archive.Backend {
	case BackendLevelDb, BackendSqlite:
	default:
		return fmt.Errorf("%w: unknown archive backend %q", ErrInvalidConfig, s.Archive.Backend)
	}
	if s.Archive.Directory == "" {
		return fmt.Errorf("%w: no archive directory", ErrInvalidConfig)
	}
	if s.Archive.CacheSize < 0 {
		return fmt.Errorf("%w: negative cache size", ErrInvalidConfig)
	}
	if s.HTTP.Address == "" {
		return fmt.Errorf("%w: no http address", ErrInvalidConfig)
	}
	if _, err := zerolog.ParseLevel(s.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
