package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "REELMATCH_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "REELMATCH_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "REELMATCH_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "REELMATCH_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
	{
		key: "matching.default_threshold", typ: kFloat, env: "REELMATCH_MATCHING_DEFAULT_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Matching.DefaultThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Matching.DefaultThreshold },
	},
	{
		key: "matching.use_posting_threshold", typ: kBool, env: "REELMATCH_MATCHING_USE_POSTING_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Matching.UsePostingThreshold = v.(bool) },
		extract: func(cfg Config) any { return cfg.Matching.UsePostingThreshold },
	},
	{
		key: "matching.max_features", typ: kInt, env: "REELMATCH_MATCHING_MAX_FEATURES",
		apply:   func(cfg *Config, v any) { cfg.Matching.MaxFeatures = v.(int) },
		extract: func(cfg Config) any { return cfg.Matching.MaxFeatures },
	},
	{
		key: "matching.embed_concurrency", typ: kInt, env: "REELMATCH_MATCHING_EMBED_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Matching.EmbedConcurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Matching.EmbedConcurrency },
	},
	{
		key: "matching.corpus_path", typ: kString, env: "REELMATCH_MATCHING_CORPUS_PATH",
		apply:   func(cfg *Config, v any) { cfg.Matching.CorpusPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Matching.CorpusPath },
	},
	{
		key: "worker.poll_interval", typ: kString, env: "REELMATCH_WORKER_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Worker.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Worker.PollInterval },
	},
	{
		key: "scheduler.enabled", typ: kBool, env: "REELMATCH_SCHEDULER_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Scheduler.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Scheduler.Enabled },
	},
	{
		key: "scheduler.rematch_spec", typ: kString, env: "REELMATCH_SCHEDULER_REMATCH_SPEC",
		apply:   func(cfg *Config, v any) { cfg.Scheduler.RematchSpec = v.(string) },
		extract: func(cfg Config) any { return cfg.Scheduler.RematchSpec },
	},
	{
		key: "api.token", typ: kString, env: apiTokenEnv,
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
