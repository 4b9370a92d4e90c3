package config

import (
	"errors"
	"testing"

	"github.com/goccy/go-yaml"

	"reshard/pkg/distribution"
	"reshard/pkg/reserrors"
)

func TestConfig_YAMLRoundTrip(t *testing.T) {
	raw := `
node:
  segment_index: 2
  zk_servers: ["zk1:2181", "zk2:2181"]
  zk_root: /reshard
reshuffle:
  old_segments: 3
  policy: hash
  key_columns: [0, 1]
  action_column: 4
  segment_column: 5
  verify: true
sink:
  dir: /tmp/spool
  zstd_level: 6
`
	var cfg Config
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if cfg.Node.SegmentIndex != 2 || len(cfg.Node.ZKServers) != 2 {
		t.Fatalf("node config: %+v", cfg.Node)
	}
	if cfg.Reshuffle.OldSegments != 3 || cfg.Reshuffle.ActionColumn != 4 || !cfg.Reshuffle.Verify {
		t.Fatalf("reshuffle config: %+v", cfg.Reshuffle)
	}

	pol, err := cfg.Reshuffle.DistributionPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if pol.Kind != distribution.KindHash || len(pol.KeyColumns) != 2 {
		t.Fatalf("policy: %+v", pol)
	}
}

func TestReshuffleConfig_BadPolicy(t *testing.T) {
	c := ReshuffleConfig{Policy: "round-robin"}
	if _, err := c.DistributionPolicy(); !errors.Is(err, reserrors.ErrInvalidPolicy) {
		t.Fatalf("got %v, want ErrInvalidPolicy", err)
	}

	c = ReshuffleConfig{Policy: "hash"}
	if _, err := c.DistributionPolicy(); !errors.Is(err, reserrors.ErrInvalidPolicy) {
		t.Fatalf("hash without key columns: got %v, want ErrInvalidPolicy", err)
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if _, err := cfg.Reshuffle.DistributionPolicy(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}
