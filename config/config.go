// Package config charge la configuration d'exécution avec viper :
// fichier YAML optionnel puis variables d'environnement préfixées.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// MaxConcurrentTasks borne la taille du pool du parcours parallèle.
	MaxConcurrentTasks = 64
	// MaxRecursiveQueries borne la profondeur des sous-requêtes.
	MaxRecursiveQueries = 16
	// IDChars est l'alphabet des identifiants générés.
	IDChars = "0123456789abcdefghijklmnopqrstuvwxyz"
	// IDLength est la longueur des identifiants générés.
	IDLength = 20

	// EnvPrefix préfixe les variables d'environnement lues par Load.
	EnvPrefix = "NOVUSGRAPH_"
)

// Config est la configuration du moteur.
type Config struct {
	// Store : "memory", "file:<chemin>" ou "sqlite:<dsn>".
	Store               string        `mapstructure:"store"`
	LogLevel            string        `mapstructure:"log_level"`
	LogFormat           string        `mapstructure:"log_format"`
	MaxConcurrentTasks  int           `mapstructure:"max_concurrent_tasks"`
	MaxRecursiveQueries int           `mapstructure:"max_recursive_queries"`
	LockTimeout         time.Duration `mapstructure:"lock_timeout"`
	// LockPolicy : "wait" ou "fail".
	LockPolicy string `mapstructure:"lock_policy"`
}

// Default retourne la configuration par défaut.
func Default() Config {
	return Config{
		Store:               "memory",
		LogLevel:            "INFO",
		LogFormat:           "text",
		MaxConcurrentTasks:  MaxConcurrentTasks,
		MaxRecursiveQueries: MaxRecursiveQueries,
		LockTimeout:         5 * time.Second,
		LockPolicy:          "wait",
	}
}

// Load lit la configuration. path désigne un fichier YAML optionnel
// (vide : aucun). Les variables PREFIX_CLE surchargent le fichier :
// NOVUSGRAPH_LOG_LEVEL=debug -> log_level.
func Load(prefix, path string) (Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("store", def.Store)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("max_concurrent_tasks", def.MaxConcurrentTasks)
	v.SetDefault("max_recursive_queries", def.MaxRecursiveQueries)
	v.SetDefault("lock_timeout", def.LockTimeout)
	v.SetDefault("lock_policy", def.LockPolicy)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	prefix = strings.ToUpper(prefix)
	for _, env := range os.Environ() {
		k, val, ok := strings.Cut(env, "=")
		if !ok || prefix == "" || !strings.HasPrefix(k, prefix) {
			continue
		}
		prop := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(k, prefix), "_"))
		v.Set(prop, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate vérifie les bornes de la configuration.
func (c Config) Validate() error {
	if c.MaxConcurrentTasks <= 0 {
		return fmt.Errorf("config: max_concurrent_tasks must be positive, got %d", c.MaxConcurrentTasks)
	}
	if c.MaxRecursiveQueries <= 0 {
		return fmt.Errorf("config: max_recursive_queries must be positive, got %d", c.MaxRecursiveQueries)
	}
	switch strings.ToLower(c.LockPolicy) {
	case "", "wait", "fail":
	default:
		return fmt.Errorf("config: unknown lock_policy %q", c.LockPolicy)
	}
	return nil
}
