// Package config loads layered operational configuration (file + env) via
// viper, matching the spf13/viper dependency used across the retrieval
// pack. ServerConfig may carry the Postgres DSN, NATS URL and Vault token
// directly; when the DSN or NATS URL is empty, cmd/ingestd reads them from
// Vault through packages/sentinelcore/secrets.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AgentConfig is the operational configuration for cmd/agent.
type AgentConfig struct {
	ContextTimeout          time.Duration `mapstructure:"context_timeout"`
	ExpiryTickInterval      time.Duration `mapstructure:"expiry_tick_interval"`
	ProcessPollInterval     time.Duration `mapstructure:"process_poll_interval"`
	NetworkPollInterval     time.Duration `mapstructure:"network_poll_interval"`
	FilesystemPollInterval  time.Duration `mapstructure:"filesystem_poll_interval"`
	PersistencePollInterval time.Duration `mapstructure:"persistence_poll_interval"`
	MemoryPollInterval      time.Duration `mapstructure:"memory_poll_interval"`
	PrivilegePollInterval   time.Duration `mapstructure:"privilege_poll_interval"`
	SendInterval            time.Duration `mapstructure:"send_interval"`
	MaxBatchSize            int           `mapstructure:"max_batch_size"`
	SendTimeout             time.Duration `mapstructure:"send_timeout"`
	RawRetention            time.Duration `mapstructure:"raw_retention"`
	RetentionSweep          time.Duration `mapstructure:"retention_sweep_interval"`
	IngestURL               string        `mapstructure:"ingest_url"`
	BufferDir               string        `mapstructure:"buffer_dir"`
	RawStoreDir             string        `mapstructure:"raw_store_dir"`
	FilesystemWatchPaths    []string      `mapstructure:"filesystem_watch_paths"`
	PrivilegeProtectedPaths []string      `mapstructure:"privilege_protected_paths"`
	ShutdownGrace           time.Duration `mapstructure:"shutdown_grace"`
}

// ServerConfig is the operational configuration for cmd/ingestd.
type ServerConfig struct {
	ListenAddr                 string        `mapstructure:"listen_addr"`
	RulesPath                  string        `mapstructure:"rules_path"`
	AlertCooldownSeconds       float64       `mapstructure:"alert_cooldown_seconds"`
	RecoveryPerCycle           float64       `mapstructure:"recovery_per_cycle"`
	SlowRecoveryPerCycle       float64       `mapstructure:"slow_recovery_per_cycle"`
	FastRecoveryPerCycle       float64       `mapstructure:"fast_recovery_per_cycle"`
	ReconContextSeconds        float64       `mapstructure:"recon_context_seconds"`
	CompromisedRecoverySeconds float64       `mapstructure:"compromised_recovery_seconds"`
	ChainEscalationBonus       float64       `mapstructure:"chain_escalation_bonus"`
	PostgresDSN                string        `mapstructure:"postgres_dsn"`
	NatsURL                    string        `mapstructure:"nats_url"`
	VaultAddr                  string        `mapstructure:"vault_addr"`
	VaultToken                 string        `mapstructure:"vault_token"`
	VaultSecretPath            string        `mapstructure:"vault_secret_path"`
	CacheGCInterval            time.Duration `mapstructure:"cache_gc_interval"`
	ProcessAllowlist           []string      `mapstructure:"process_allowlist"`
}

func newViper(configFile string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func agentDefaults(v *viper.Viper) {
	v.SetDefault("context_timeout", 30*time.Second)
	v.SetDefault("expiry_tick_interval", 1*time.Second)
	v.SetDefault("process_poll_interval", 2*time.Second)
	v.SetDefault("network_poll_interval", 2*time.Second)
	v.SetDefault("filesystem_poll_interval", 5*time.Second)
	v.SetDefault("persistence_poll_interval", 10*time.Second)
	v.SetDefault("memory_poll_interval", 5*time.Second)
	v.SetDefault("privilege_poll_interval", 5*time.Second)
	v.SetDefault("send_interval", 5*time.Second)
	v.SetDefault("max_batch_size", 10)
	v.SetDefault("send_timeout", 5*time.Second)
	v.SetDefault("raw_retention", 6*time.Hour)
	v.SetDefault("retention_sweep_interval", 5*time.Minute)
	v.SetDefault("ingest_url", "http://localhost:8090/api/logs")
	v.SetDefault("buffer_dir", "./data/buffer")
	v.SetDefault("raw_store_dir", "./data/raw")
	v.SetDefault("privilege_protected_paths", []string{"/etc/shadow", "/etc/sudoers.d"})
	v.SetDefault("shutdown_grace", 5*time.Second)
}

// LoadAgent loads the agent configuration from configFile (may not exist —
// defaults + env still apply) and the process environment.
func LoadAgent(configFile string) (AgentConfig, error) {
	v := newViper(configFile)
	agentDefaults(v)
	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return AgentConfig{}, err
			}
		}
	}
	var cfg AgentConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return AgentConfig{}, err
	}
	return cfg, nil
}

func serverDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8090")
	v.SetDefault("rules_path", "./rules.yaml")
	v.SetDefault("alert_cooldown_seconds", 45.0)
	v.SetDefault("recovery_per_cycle", 1.2)
	v.SetDefault("slow_recovery_per_cycle", 0.2)
	v.SetDefault("fast_recovery_per_cycle", 3.0)
	v.SetDefault("recon_context_seconds", 30.0)
	v.SetDefault("compromised_recovery_seconds", 120.0)
	v.SetDefault("chain_escalation_bonus", 5.0)
	v.SetDefault("vault_addr", "http://localhost:8200")
	v.SetDefault("vault_token", "root")
	v.SetDefault("vault_secret_path", "secret/data/sentinel/ingestd")
	v.SetDefault("cache_gc_interval", 1*time.Minute)
}

// LoadServer loads the ingestion service's configuration.
func LoadServer(configFile string) (ServerConfig, error) {
	v := newViper(configFile)
	serverDefaults(v)
	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return ServerConfig{}, err
			}
		}
	}
	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}
