package config

import (
	"reshard/pkg/distribution"
)

// Config holds all configuration for one reshuffle worker.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Reshuffle ReshuffleConfig `yaml:"reshuffle"`
	Source    SourceConfig    `yaml:"source"`
	Sink      SinkConfig      `yaml:"sink"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logger    LoggerConfig    `yaml:"logger"`
}

// NodeConfig describes this segment's identity and cluster membership. When
// ZKServers is empty the worker runs with a static topology of NewSegments
// segments instead of reading live membership.
type NodeConfig struct {
	SegmentIndex int      `yaml:"segment_index"`
	ZKServers    []string `yaml:"zk_servers"`
	ZKRoot       string   `yaml:"zk_root"`
	NewSegments  int      `yaml:"new_segments"`
}

// ReshuffleConfig carries the plan-side inputs of the reshuffle statement:
// the pre-expansion segment count, the table's distribution policy, and the
// reserved row slots. The new segment count is deliberately absent; it comes
// from live membership.
type ReshuffleConfig struct {
	OldSegments   int    `yaml:"old_segments"`
	Policy        string `yaml:"policy"`
	KeyColumns    []int  `yaml:"key_columns"`
	ActionColumn  int    `yaml:"action_column"`
	SegmentColumn int    `yaml:"segment_column"`
	Verify        bool   `yaml:"verify"`
}

// DistributionPolicy builds the policy variant from the config strings.
func (c ReshuffleConfig) DistributionPolicy() (distribution.Policy, error) {
	kind, err := distribution.ParseKind(c.Policy)
	if err != nil {
		return distribution.Policy{}, err
	}
	p := distribution.Policy{Kind: kind}
	if kind == distribution.KindHash {
		p.KeyColumns = c.KeyColumns
	}
	if err := p.Validate(); err != nil {
		return distribution.Policy{}, err
	}
	return p, nil
}

// SourceConfig points at the local row source.
type SourceConfig struct {
	Path string `yaml:"path"`
}

// SinkConfig controls the per-segment spool output.
type SinkConfig struct {
	Dir       string `yaml:"dir"`
	ZstdLevel int    `yaml:"zstd_level"`
}

// HTTPConfig covers the status API.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// LoggerConfig selects slog handler and level.
type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a baseline single-machine config.
func Default() Config {
	return Config{
		Node: NodeConfig{
			SegmentIndex: 0,
			ZKRoot:       "/reshard",
			NewSegments:  4,
		},
		Reshuffle: ReshuffleConfig{
			OldSegments:   2,
			Policy:        "hash",
			KeyColumns:    []int{0},
			ActionColumn:  2,
			SegmentColumn: 3,
			Verify:        true,
		},
		Source: SourceConfig{Path: "./data/rows.avro"},
		Sink:   SinkConfig{Dir: "./data/spool", ZstdLevel: 3},
		HTTP:   HTTPConfig{Port: 8080},
		Logger: LoggerConfig{Level: "info", JSON: false},
	}
}
