package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marketdata/moldfeed/internal/config"
	"github.com/marketdata/moldfeed/internal/ingest"
	"github.com/marketdata/moldfeed/internal/logging"
	"github.com/marketdata/moldfeed/internal/mcast"
	"github.com/marketdata/moldfeed/internal/observability"
	"github.com/marketdata/moldfeed/internal/protocol/mold"
	"github.com/marketdata/moldfeed/internal/protocol/render"
	"github.com/marketdata/moldfeed/internal/recovery"
)

const (
	batchSize   = 32
	slotBytes   = 65536
	outputBytes = 262144
	recvTimeout = 500 * time.Millisecond
)

func main() {
	cfgPath := flag.String("config", "moldfeed.ini", "path to the INI-style config file")
	gapFill := flag.Bool("gap-fill", false, "recover live gaps via retransmission as they occur")
	startSeq := flag.Uint64("start-seq", 0, "download from this sequence then stop, unless -gap-fill is also set")
	msgCap := flag.Uint64("msg-cap", 0, "stop after this many total messages (0 = unbounded)")
	verbose := flag.Bool("verbose", false, "prefix rendered fields with their schema name")
	noColor := flag.Bool("no-color", false, "disable ANSI color in the diagnostic log stream")
	flag.Parse()

	log := observability.InitLogger("moldfeed", *noColor || logging.NoColor())
	logging.ConfigureRuntime()

	cfg, err := config.LoadAppConfig(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration load failed")
	}

	recv, err := mcast.Open(mcast.OpenConfig{
		Group:         cfg.Net.MulticastGroup,
		Port:          cfg.Net.MulticastPort,
		InterfaceAddr: cfg.Net.InterfaceAddr,
		Source:        cfg.Net.MulticastSource,
		RecvBufBytes:  cfg.Net.RecvBufBytes,
	}, batchSize, slotBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("multicast open failed")
	}
	defer recv.Close()

	wantsDownload := *startSeq > 0
	var rec *recovery.Client
	if cfg.RetransmissionAvailable() {
		rec, err = recovery.Open(cfg.Net.RerequestAddr, cfg.Net.RerequestPort, cfg.Recovery.MaxRecoveryMessageCount, cfg.Net.RecvBufBytes, recvTimeout, log)
		if err != nil {
			if wantsDownload {
				log.Fatal().Err(err).Msg("retransmission open failed for requested download mode")
			}
			log.Warn().Err(err).Msg("retransmission open failed; gap-fill disabled")
			*gapFill = false
			rec = nil
		} else {
			defer rec.Close()
		}
	} else if *gapFill || wantsDownload {
		if wantsDownload {
			log.Fatal().Msg("download mode requested but no retransmission peer is configured")
		}
		log.Warn().Msg("gap-fill requested but no retransmission peer is configured; disabling")
		*gapFill = false
	}

	buf := render.NewBuffer(make([]byte, outputBytes))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opt := ingest.Options{
		StartSeq:   *startSeq,
		GapFill:    *gapFill,
		MessageCap: *msgCap,
		Decode:     mold.DecodeOptions{Verbose: *verbose},
	}

	var recoverer ingest.Recoverer
	if rec != nil {
		recoverer = rec
	}

	loop := ingest.New(recv, cfg.Catalog, recoverer, os.Stdout, buf, log, opt, func() bool {
		return ctx.Err() != nil
	})

	if err := loop.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		log.Error().Err(err).Msg("ingest loop exited with error")
		os.Exit(1)
	}
}
