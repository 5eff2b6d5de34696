package main

import (
	"context"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/d2r2/go-logger"
	"github.com/urfave/cli"

	"github.com/egregors/hkenv/internal/bme280"
	"github.com/egregors/hkenv/internal/bme280/sim"
	"github.com/egregors/hkenv/internal/config"
	"github.com/egregors/hkenv/internal/homekit"
	"github.com/egregors/hkenv/internal/metrics"
	"github.com/egregors/hkenv/internal/notifier"
	"github.com/egregors/hkenv/internal/sensors"
	"github.com/egregors/hkenv/log"
	"github.com/egregors/hkenv/srv"
)

const (
	metricsRetention = 2 * time.Minute
	devAddr          = ":8080"
)

func main() {
	app := cli.NewApp()
	app.Name = "hkenv-dev"
	app.Usage = "hkenv with a simulated BME280 and without HomeKit"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "",
			Usage: "load configuration from `FILE`",
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
	setupLogger()

	opts, err := cfg.Sensor.Options()
	if err != nil {
		return err
	}

	dev := sim.New()
	climate, err := sensors.NewBME280(dev, opts...)
	if err != nil {
		return err
	}

	m, dumpFn := metrics.New(
		metrics.WithRetention(metricsRetention),
		metrics.WithBackup(),
		metrics.WithDumpPath(cfg.Metrics.DumpPath),
	)
	server := srv.New(
		climate, &homekit.NoopHap{}, m,
		srv.WithAddr(devAddr),
		srv.WithPollInterval(time.Second),
		srv.WithNotifier(notifier.NewNoop()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go drift(ctx, dev)

	runErr := server.Run(ctx)
	log.Info.Println("server shutdown...")

	if err := dumpFn(); err != nil {
		log.Erro.Printf("can't make a metrics dump: %s", err.Error())
	}

	log.Info.Println("bye")

	return runErr
}

// drift walks the simulated raw readings so the dashboard has something to show.
func drift(ctx context.Context, dev *sim.Device) {
	t, p, h := sim.RawTemperature, sim.RawPressure, sim.RawHumidity
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}

		t += rand.Int32N(401) - 200
		p += rand.Int32N(201) - 100
		h = min(max(h+rand.Int32N(101)-50, 0), 0xFFFF)
		dev.SetRaw(bme280.RawSample{Pressure: p, Temperature: t, Humidity: h})
	}
}

func setupLogger() {
	for _, pkg := range []string{"i2c", "bsbmp", "bme280"} {
		if err := logger.ChangePackageLogLevel(pkg, logger.DebugLevel); err != nil {
			log.Warn.Printf("can't setup %s logger to DEBUG: %s", pkg, err.Error())
		}
	}
}
