package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads YAML file and returns Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes and validates YAML bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: json.Marshal은 map 키를 정렬하므로 variants도 재현 가능
func Hash(cfg *Config) (string, error) {
	return hashJSON(cfg)
}

// VariantHash hashes only what affects one variant's watchlist
// (benchmark + rs + variant). 다른 variant 수정 시 해시 불변
func VariantHash(cfg *Config, name string) (string, error) {
	v, err := cfg.Variant(name)
	if err != nil {
		return "", err
	}

	return hashJSON(struct {
		Benchmark Benchmark `json:"benchmark"`
		RS        RS        `json:"rs"`
		Variant   Variant   `json:"variant"`
	}{cfg.Benchmark, cfg.RS, v})
}

func hashJSON(v interface{}) (string, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewRunSnapshot creates a snapshot for one variant run
func NewRunSnapshot(cfg *Config, yamlData []byte, variant string) (*RunSnapshot, error) {
	hash, err := VariantHash(cfg, variant)
	if err != nil {
		return nil, err
	}

	return &RunSnapshot{
		ConfigHash: hash,
		ConfigYAML: string(yamlData),
		StrategyID: cfg.Meta.StrategyID,
		Variant:    variant,
		CreatedAt:  time.Now(),
	}, nil
}
