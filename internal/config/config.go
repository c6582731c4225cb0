// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the process-wide Config from the environment,
// the only place any component reads os.Getenv directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is every environment-driven tunable the server reads at
// startup.
type Config struct {
	ListenAddr string
	DatabaseURL string
	WordListDir string

	PointThreshold          int
	MinPlayers              int
	MaxPlayers              int
	RoundCountdownSeconds   int
	GuessingDeadlineSeconds int
	IndividualDeadlineSeconds int
	PauseTimeoutSeconds     int
	MaxGameDurationSeconds  int
	QueueVoteFraction       float64

	DevAuthMode bool
	JWTSecret   string

	LogLevel string

	AWSRegion         string
	DynamoTablePrefix string
}

// Load reads an optional .env file (development convenience, ignored
// if absent) and then the process environment, applying spec defaults
// for anything unset.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		WordListDir: getEnv("WORD_LIST_DIR", ""),

		DevAuthMode: getEnvBool("DEV_AUTH_MODE", false),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		DynamoTablePrefix: getEnv("DYNAMO_TABLE_PREFIX", "word-arena"),
	}

	var err error
	if cfg.PointThreshold, err = getEnvInt("POINT_THRESHOLD", 25); err != nil {
		return Config{}, err
	}
	if cfg.MinPlayers, err = getEnvInt("MIN_PLAYERS", 2); err != nil {
		return Config{}, err
	}
	if cfg.MaxPlayers, err = getEnvInt("MAX_PLAYERS", 16); err != nil {
		return Config{}, err
	}
	if cfg.RoundCountdownSeconds, err = getEnvInt("ROUND_COUNTDOWN_SECONDS", 5); err != nil {
		return Config{}, err
	}
	if cfg.GuessingDeadlineSeconds, err = getEnvInt("GUESSING_DEADLINE_SECONDS", 45); err != nil {
		return Config{}, err
	}
	if cfg.IndividualDeadlineSeconds, err = getEnvInt("INDIVIDUAL_DEADLINE_SECONDS", 30); err != nil {
		return Config{}, err
	}
	if cfg.PauseTimeoutSeconds, err = getEnvInt("PAUSE_TIMEOUT_SECONDS", 300); err != nil {
		return Config{}, err
	}
	if cfg.MaxGameDurationSeconds, err = getEnvInt("MAX_GAME_DURATION_SECONDS", 7200); err != nil {
		return Config{}, err
	}
	if cfg.QueueVoteFraction, err = getEnvFloat("QUEUE_VOTE_FRACTION", 0.60); err != nil {
		return Config{}, err
	}

	if !cfg.DevAuthMode && cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config: JWT_SECRET is required unless DEV_AUTH_MODE is set")
	}

	return cfg, nil
}

// RoundCountdown etc. convert the stored second-counts to durations
// for the game/matchmaking Config structs.
func (c Config) RoundCountdown() time.Duration   { return time.Duration(c.RoundCountdownSeconds) * time.Second }
func (c Config) GuessingDeadline() time.Duration { return time.Duration(c.GuessingDeadlineSeconds) * time.Second }
func (c Config) IndividualDeadline() time.Duration {
	return time.Duration(c.IndividualDeadlineSeconds) * time.Second
}
func (c Config) PauseTimeout() time.Duration    { return time.Duration(c.PauseTimeoutSeconds) * time.Second }
func (c Config) MaxGameDuration() time.Duration { return time.Duration(c.MaxGameDurationSeconds) * time.Second }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}
