package srv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/egregors/hkenv/internal/bme280"
	"github.com/egregors/hkenv/internal/metrics"
	"golang.org/x/sync/errgroup"

	"github.com/egregors/hkenv/log"
)

const (
	defaultPullPushSleep = 5 * time.Second
	defaultAddr          = ":80"

	temperatureKey = "current_temperature"
	humidityKey    = "current_humidity"
	pressureKey    = "current_pressure"
)

type HapServer interface {
	SetCurrentTemperature(t float64)
	SetCurrentHumidity(h float64)

	ListenAndServe(ctx context.Context) error
}

type ClimateSensor interface {
	CurrentTemperature() (float64, error)
	CurrentHumidity() (float64, error)
	CurrentPressure() (float64, error)
}

// CalibrationProvider is implemented by sensors that expose their factory
// calibration.
type CalibrationProvider interface {
	Calibration() bme280.Calibration
}

type Metrics interface {
	Gauge(key string, val float64)
	Avg(key string, dur time.Duration) []metrics.Value
	Series(key string, dur time.Duration) []float64
}

type Notifier interface {
	Notify(title, message string) error
}

type SensorStatus int

const (
	UNKNOWN SensorStatus = iota
	ONLINE
	OFFLINE
)

func (s SensorStatus) String() string {
	switch s {
	case ONLINE:
		return "online"
	case OFFLINE:
		return "offline"
	default:
		return "unknown"
	}
}

type Option func(s *Server)

func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		s.pullPushSleep = d
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Server) {
		s.notifier = n
	}
}

type Server struct {
	webSrv   *http.Server
	hkSrv    HapServer
	climate  ClimateSensor
	metrics  Metrics
	notifier Notifier

	addr          string
	pullPushSleep time.Duration
	startTime     time.Time

	mu           *sync.RWMutex
	currT, currH float64
	currP        float64
	updatedAt    time.Time
	sensorStatus SensorStatus
	sensorErr    error
}

func New(climate ClimateSensor, hapSrv HapServer, metrics Metrics, opts ...Option) *Server {
	s := &Server{
		webSrv:        nil,
		hkSrv:         hapSrv,
		climate:       climate,
		metrics:       metrics,
		notifier:      noopNotifier{},
		addr:          defaultAddr,
		pullPushSleep: defaultPullPushSleep,
		startTime:     time.Now(),
		mu:            &sync.RWMutex{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// sync sensor -> metrics & HomeKit
	g.Go(func() error {
		log.Info.Printf("start syncing sensor data with %v sleep", s.pullPushSleep)
		for {
			s.pullDataFromSensor()
			s.pushDataToHK()

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.pullPushSleep):
			}
		}
	})
	// go web server
	g.Go(func() error {
		log.Info.Printf("start web server on %s", s.addr)
		return s.runWebServer(ctx)
	})
	// go hap server
	g.Go(func() error {
		log.Info.Println("start HAP server")
		return s.runHapServer(ctx)
	})

	return g.Wait()
}

// MeasurementSensor is implemented by sensors that read all values from a
// single conversion.
type MeasurementSensor interface {
	Current() (bme280.Measurement, error)
}

func (s *Server) read() (t, h, p float64, err error) {
	if ms, ok := s.climate.(MeasurementSensor); ok {
		m, err := ms.Current()
		return m.Temperature, m.Humidity, m.Pressure, err
	}

	g := new(errgroup.Group)
	g.Go(func() (err error) {
		t, err = s.climate.CurrentTemperature()
		return err
	})
	g.Go(func() (err error) {
		h, err = s.climate.CurrentHumidity()
		return err
	})
	g.Go(func() (err error) {
		p, err = s.climate.CurrentPressure()
		return err
	})
	err = g.Wait()

	return t, h, p, err
}

func (s *Server) pullDataFromSensor() {
	t, h, p, err := s.read()

	s.mu.Lock()
	var title, msg string
	var notify bool
	if err != nil {
		log.Erro.Printf("can't get sensor data: %s", err.Error())
		title, msg, notify = s.setStatus(OFFLINE, err)
	} else {
		title, msg, notify = s.setStatus(ONLINE, nil)
		s.currT, s.currH, s.currP = t, h, p
		s.updatedAt = time.Now()
	}
	s.mu.Unlock()

	if err == nil {
		s.metrics.Gauge(temperatureKey, t)
		s.metrics.Gauge(humidityKey, h)
		s.metrics.Gauge(pressureKey, p)
	}

	// ntfy is a network call, keep it out of the lock
	if notify {
		if nErr := s.notifier.Notify(title, msg); nErr != nil {
			log.Warn.Printf("can't send notification: %s", nErr.Error())
		}
	}
}

// setStatus must be called with s.mu held. It reports whether the change is
// a transition worth a notification.
func (s *Server) setStatus(status SensorStatus, err error) (title, msg string, notify bool) {
	prev := s.sensorStatus
	s.sensorStatus, s.sensorErr = status, err

	switch {
	case status == OFFLINE && prev != OFFLINE:
		return "🇭🇰 Sensor Error", fmt.Sprintf("Sensor error occurred: %s", err.Error()), true
	case status == ONLINE && prev == OFFLINE:
		return "🇭🇰 Sensor Recovered", "Sensor is back online", true
	default:
		return "", "", false
	}
}

func (s *Server) pushDataToHK() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.sensorStatus != ONLINE {
		return
	}

	s.hkSrv.SetCurrentTemperature(s.currT)
	s.hkSrv.SetCurrentHumidity(s.currH)
}

func (s *Server) runWebServer(ctx context.Context) error {
	if s.webSrv != nil {
		return errors.New("web server already exist")
	}

	s.webSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 1 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.webSrv.Shutdown(shutdownCtx)
	}()

	if err := s.webSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) runHapServer(ctx context.Context) error {
	return s.hkSrv.ListenAndServe(ctx)
}

func (s *Server) title() string {
	var title string
	switch s.sensorStatus {
	case ONLINE:
		title = fmt.Sprintf("Sensor: 🟢 Online %s\n", s.formatUptime())
	case OFFLINE:
		title = fmt.Sprintf("Sensor: 🔴 Offline %s\n", s.formatUptime())
		if s.sensorErr != nil {
			title += fmt.Sprintf("Error: %s\n", s.sensorErr.Error())
		}
	default:
		title = fmt.Sprintf("Sensor: ⚪ Waiting %s\n", s.formatUptime())
	}

	return title
}

func (s *Server) formatUptime() string {
	d := time.Since(s.startTime)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("(uptime: %dd %dh %dm)", days, hours, mins)
	case hours > 0:
		return fmt.Sprintf("(uptime: %dh %dm)", hours, mins)
	default:
		return fmt.Sprintf("(uptime: %dm)", mins)
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(_, _ string) error { return nil }
