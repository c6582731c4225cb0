// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"log"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/ChristopherJMiller/word-arena/internal/auth"
	"github.com/ChristopherJMiller/word-arena/internal/config"
	"github.com/ChristopherJMiller/word-arena/internal/coordinator"
	"github.com/ChristopherJMiller/word-arena/internal/game"
	"github.com/ChristopherJMiller/word-arena/internal/httpapi"
	"github.com/ChristopherJMiller/word-arena/internal/logging"
	"github.com/ChristopherJMiller/word-arena/internal/matchmaking"
	"github.com/ChristopherJMiller/word-arena/internal/registry"
	"github.com/ChristopherJMiller/word-arena/internal/stats"
	"github.com/ChristopherJMiller/word-arena/internal/transport"
	"github.com/ChristopherJMiller/word-arena/internal/wordlist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config: ", err)
	}

	logger := logging.New(cfg.LogLevel)

	provider, err := wordlist.NewFileProvider(cfg.WordListDir, []int{5, 6, 7})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load word lists")
	}

	var statsRepo stats.Stats
	if cfg.DevAuthMode {
		statsRepo = stats.NewMemory()
	} else {
		sess := session.Must(session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)}))
		statsRepo = stats.NewDynamo(sess, cfg.DynamoTablePrefix)
	}

	var verifier auth.Verifier
	if cfg.DevAuthMode {
		verifier = auth.NewDevVerifier()
	} else {
		verifier = auth.NewJWTVerifier(cfg.JWTSecret)
	}

	reg := registry.New()

	coordCfg := coordinator.Config{
		Queue: matchmaking.Config{
			MinPlayers:       cfg.MinPlayers,
			MaxPlayers:       cfg.MaxPlayers,
			VoteFraction:     cfg.QueueVoteFraction,
			FullCountdown:    matchmaking.DefaultConfig().FullCountdown,
			IdleQueueTimeout: matchmaking.DefaultConfig().IdleQueueTimeout,
		},
		Room: game.Config{
			WordLengths:        []int{5, 6, 7},
			PointThreshold:     cfg.PointThreshold,
			StartGrace:         game.DefaultConfig().StartGrace,
			RoundCountdown:     cfg.RoundCountdown(),
			GuessingDeadline:   cfg.GuessingDeadline(),
			IndividualDeadline: cfg.IndividualDeadline(),
			PauseTimeout:       cfg.PauseTimeout(),
			MaxGameDuration:    cfg.MaxGameDuration(),
		},

		ReaperPeriod:  coordinator.DefaultConfig().ReaperPeriod,
		TerminalGrace: coordinator.DefaultConfig().TerminalGrace,
	}

	co := coordinator.New(coordCfg, reg, provider, statsRepo, verifier, logger)

	done := make(chan struct{})
	defer close(done)
	go reg.Run(done)
	go co.Run(done)

	wsHandler := &transport.Handler{Registry: reg, Coordinator: co, Log: logger}
	router := httpapi.New(co, statsRepo, wsHandler, logger)

	logger.Info().Str("addr", cfg.ListenAddr).Msg("word-arena server starting")
	if err := http.ListenAndServe(cfg.ListenAddr, logging.Middleware(logger)(router)); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
