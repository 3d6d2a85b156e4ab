package main

import (
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// envConfig holds settings sourced from the environment via envdecode,
// matching the teacher's sessions/redishost.Config idiom.
type envConfig struct {
	Addr string `env:"RELAY_ADDR,default=:8080"`
}

// fileConfig holds settings sourced from an optional YAML server-definition
// file, matching the pack's dominant YAML-config idiom (agentflow, gridctl,
// coven-gateway, bureau).
type fileConfig struct {
	ServerName   string `yaml:"serverName"`
	Version      string `yaml:"version"`
	Instructions string `yaml:"instructions"`
}

func loadEnvConfig() envConfig {
	var cfg envConfig
	_ = envdecode.Decode(&cfg)
	return cfg
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}
