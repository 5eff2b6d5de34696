package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brutella/hap"
	"github.com/d2r2/go-logger"
	"github.com/urfave/cli"

	"github.com/egregors/hkenv/internal/bus"
	"github.com/egregors/hkenv/internal/config"
	"github.com/egregors/hkenv/internal/homekit"
	"github.com/egregors/hkenv/internal/metrics"
	"github.com/egregors/hkenv/internal/notifier"
	"github.com/egregors/hkenv/internal/sensors"
	"github.com/egregors/hkenv/log"
	"github.com/egregors/hkenv/srv"
)

var revision = "HEAD"

func main() {
	app := cli.NewApp()
	app.Name = "hkenv"
	app.Usage = "BME280 climate sensor for HomeKit"
	app.Version = revision

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Value:  "",
			Usage:  "load configuration from `FILE`",
			EnvVar: "HKENV_CONFIG",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
	}

	app.Action = serve

	if err := app.Run(os.Args); err != nil {
		log.Erro.Printf("can't run server: %s", err.Error())
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	cfg.Debug = cfg.Debug || c.Bool("debug")

	setupLogger(cfg.Debug)
	log.Info.Printf("🇭🇰 revision: %s", revision)

	climate, err := makeClimate(cfg.Sensor)
	if err != nil {
		return err
	}

	hk, err := makeHkSrv(cfg.HomeKit)
	if err != nil {
		return err
	}

	m, dumpFn := makeMetrics(cfg.Metrics)
	server := srv.New(
		climate, hk, m,
		srv.WithAddr(cfg.Web.Addr),
		srv.WithPollInterval(cfg.Sensor.PollInterval),
		srv.WithNotifier(makeNotifier(cfg.Ntfy)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := server.Run(ctx)
	log.Info.Println("server shutdown...")

	log.Info.Println("try make a dump to restore it next time...")
	if err := dumpFn(); err != nil {
		log.Erro.Printf("can't make a metrics dump: %s", err.Error())
	} else {
		log.Info.Println("done")
	}

	if closer, ok := climate.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Warn.Printf("can't close sensor: %s", err.Error())
		}
	}

	log.Info.Println("bye")

	return runErr
}

func makeMetrics(cfg config.Metrics) (m *metrics.InMem, dump metrics.DumpFn) {
	opts := []metrics.Option{
		metrics.WithRetention(cfg.Retention),
		metrics.WithDumpPath(cfg.DumpPath),
	}
	if cfg.Backup {
		opts = append(opts, metrics.WithBackup(), metrics.WithAutosave(cfg.Autosave))
	}

	return metrics.New(opts...)
}

func makeClimate(cfg config.Sensor) (srv.ClimateSensor, error) {
	if cfg.Backend == config.BackendBSBMP {
		s, err := sensors.NewBSBMP(uint8(cfg.Address), cfg.Bus)
		if err != nil {
			return nil, fmt.Errorf("can't create go-bsbmp sensor: %w", err)
		}

		return s, nil
	}

	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	conn, err := bus.Open(cfg.BusOpts())
	if err != nil {
		return nil, err
	}

	s, err := sensors.NewBME280(conn, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("can't create BME280 sensor: %w", err)
	}

	return s, nil
}

func makeHkSrv(cfg config.HomeKit) (srv.HapServer, error) {
	if !cfg.Enabled {
		log.Info.Println("HomeKit is disabled")
		return &homekit.NoopHap{}, nil
	}

	hk, err := homekit.NewBME280HapSrv(hap.NewFsStore(cfg.DBPath), cfg.Pin)
	if err != nil {
		return nil, fmt.Errorf("can't create HAP server: %w", err)
	}

	return hk, nil
}

func makeNotifier(cfg config.Ntfy) srv.Notifier {
	if cfg.URL == "" {
		return notifier.NewNoop()
	}

	return notifier.NewNtfy(cfg.URL)
}

func setupLogger(debug bool) {
	if !debug {
		log.Debg.Off()
	}

	lvl := logger.InfoLevel
	if debug {
		lvl = logger.DebugLevel
	}

	for _, pkg := range []string{"i2c", "bsbmp", "bme280"} {
		if err := logger.ChangePackageLogLevel(pkg, lvl); err != nil {
			log.Warn.Printf("can't setup %s logger to %v: %s", pkg, lvl, err.Error())
		}
	}
}
