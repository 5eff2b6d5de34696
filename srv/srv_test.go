package srv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egregors/hkenv/internal/bme280/sim"
	"github.com/egregors/hkenv/internal/homekit"
	"github.com/egregors/hkenv/internal/metrics"
	"github.com/egregors/hkenv/internal/sensors"
)

type fakeSensor struct {
	mu      sync.Mutex
	t, h, p float64
	err     error
}

func (f *fakeSensor) set(t, h, p float64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t, f.h, f.p, f.err = t, h, p, err
}

func (f *fakeSensor) CurrentTemperature() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t, f.err
}

func (f *fakeSensor) CurrentHumidity() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.h, f.err
}

func (f *fakeSensor) CurrentPressure() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.p, f.err
}

type fakeMetrics struct {
	gauges map[string][]float64
	avg    map[string][]metrics.Value
	series map[string][]float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		gauges: map[string][]float64{},
		avg:    map[string][]metrics.Value{},
		series: map[string][]float64{},
	}
}

func (f *fakeMetrics) Gauge(key string, val float64) { f.gauges[key] = append(f.gauges[key], val) }

func (f *fakeMetrics) Avg(key string, _ time.Duration) []metrics.Value { return f.avg[key] }

func (f *fakeMetrics) Series(key string, _ time.Duration) []float64 { return f.series[key] }

type fakeNotifier struct {
	titles []string
}

func (f *fakeNotifier) Notify(title, _ string) error {
	f.titles = append(f.titles, title)
	return nil
}

func TestFormatUptime(t *testing.T) {
	server := &Server{
		startTime: time.Now().Add(-65 * time.Minute),
	}

	assert.Equal(t, "(uptime: 1h 5m)", server.formatUptime())
}

func TestFormatUptimeMinutes(t *testing.T) {
	server := &Server{
		startTime: time.Now().Add(-30 * time.Minute),
	}

	assert.Equal(t, "(uptime: 30m)", server.formatUptime())
}

func TestFormatUptimeDays(t *testing.T) {
	server := &Server{
		startTime: time.Now().Add(-25*time.Hour - 30*time.Minute),
	}

	assert.Equal(t, "(uptime: 1d 1h 30m)", server.formatUptime())
}

func TestTitleWithUptime(t *testing.T) {
	server := &Server{
		sensorStatus: ONLINE,
		startTime:    time.Now().Add(-45 * time.Minute),
	}

	assert.Equal(t, "Sensor: 🟢 Online (uptime: 45m)\n", server.title())
}

func TestTitleOfflineWithUptime(t *testing.T) {
	server := &Server{
		sensorStatus: OFFLINE,
		sensorErr:    &testError{msg: "test error"},
		startTime:    time.Now().Add(-2*time.Hour - 15*time.Minute),
	}

	assert.Equal(t, "Sensor: 🔴 Offline (uptime: 2h 15m)\nError: test error\n", server.title())
}

func TestTitleWaiting(t *testing.T) {
	server := &Server{startTime: time.Now()}

	assert.Equal(t, "Sensor: ⚪ Waiting (uptime: 0m)\n", server.title())
}

func TestPullDataFromSensor(t *testing.T) {
	sensor := &fakeSensor{}
	sensor.set(21.5, 40, 1013.25, nil)
	m := newFakeMetrics()
	n := &fakeNotifier{}
	hk := &homekit.NoopHap{}

	s := New(sensor, hk, m, WithNotifier(n))

	s.pullDataFromSensor()
	s.pushDataToHK()

	assert.Equal(t, ONLINE, s.sensorStatus)
	assert.Equal(t, []float64{21.5}, m.gauges[temperatureKey])
	assert.Equal(t, []float64{40}, m.gauges[humidityKey])
	assert.Equal(t, []float64{1013.25}, m.gauges[pressureKey])
	assert.Empty(t, n.titles, "unknown -> online is not a transition worth notifying")

	temp, hum := hk.Values()
	assert.Equal(t, 21.5, temp)
	assert.Equal(t, 40.0, hum)
}

func TestPullDataStatusTransitions(t *testing.T) {
	sensor := &fakeSensor{}
	sensor.set(0, 0, 0, &testError{msg: "nack"})
	m := newFakeMetrics()
	n := &fakeNotifier{}
	hk := &homekit.NoopHap{}

	s := New(sensor, hk, m, WithNotifier(n))

	s.pullDataFromSensor()
	s.pullDataFromSensor()
	s.pushDataToHK()

	assert.Equal(t, OFFLINE, s.sensorStatus)
	assert.EqualError(t, s.sensorErr, "nack")
	assert.Equal(t, []string{"🇭🇰 Sensor Error"}, n.titles)
	assert.Empty(t, m.gauges)

	temp, _ := hk.Values()
	assert.Zero(t, temp, "offline values are not pushed to HomeKit")

	sensor.set(20, 50, 1000, nil)
	s.pullDataFromSensor()

	assert.Equal(t, ONLINE, s.sensorStatus)
	assert.NoError(t, s.sensorErr)
	assert.Equal(t, []string{"🇭🇰 Sensor Error", "🇭🇰 Sensor Recovered"}, n.titles)
}

func TestPullDataSingleConversion(t *testing.T) {
	sensor, err := sensors.NewBME280(sim.New())
	require.NoError(t, err)

	m := newFakeMetrics()
	s := New(sensor, &homekit.NoopHap{}, m)
	s.pullDataFromSensor()

	require.Equal(t, ONLINE, s.sensorStatus)
	assert.Equal(t, 25.08, s.currT)
	assert.InDelta(t, 55.0, s.currH, 0.01)
	assert.InDelta(t, 1006.53, s.currP, 0.01)
}

func TestMeasurementEndpoint(t *testing.T) {
	sensor := &fakeSensor{}
	sensor.set(21.5, 40, 1013.25, nil)
	s := New(sensor, &homekit.NoopHap{}, newFakeMetrics())
	s.pullDataFromSensor()

	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/measurement", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp measurementResp
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 21.5, resp.Temperature)
	assert.Equal(t, 40.0, resp.Humidity)
	assert.Equal(t, 1013.25, resp.Pressure)
	assert.Equal(t, "online", resp.Status)
	assert.Empty(t, resp.Error)
	assert.False(t, resp.UpdatedAt.IsZero())
}

func TestCalibrationEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	s := New(&fakeSensor{}, &homekit.NoopHap{}, newFakeMetrics())
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calibration", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	sensor, err := sensors.NewBME280(sim.New())
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	s = New(sensor, &homekit.NoopHap{}, newFakeMetrics())
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calibration", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]int64
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, int64(sim.DefaultCalibration.T1), got["T1"])
	assert.Equal(t, int64(sim.DefaultCalibration.P9), got["P9"])
	assert.Equal(t, int64(sim.DefaultCalibration.H4), got["H4"])
}

func TestHistoryEndpoint(t *testing.T) {
	hour := time.Now().Truncate(time.Hour)
	m := newFakeMetrics()
	m.avg[pressureKey] = []metrics.Value{
		{T: hour.Add(-time.Hour), V: 1005},
		{T: hour, V: 1006.5},
	}
	s := New(&fakeSensor{}, &homekit.NoopHap{}, m)

	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/pressure", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []historyPoint
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, 1006.5, got[1].V)
	assert.True(t, hour.Equal(got[1].T))

	rec = httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/temperature", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/co2", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboard(t *testing.T) {
	sensor := &fakeSensor{}
	sensor.set(21.5, 40, 1013.25, nil)
	s := New(sensor, &homekit.NoopHap{}, newFakeMetrics())

	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sensor: ⚪ Waiting")
	assert.Contains(t, rec.Body.String(), "no data yet")

	s.pullDataFromSensor()

	rec = httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	body := rec.Body.String()
	assert.Contains(t, body, "Sensor: 🟢 Online")
	assert.Contains(t, body, "Temp  21.50 °C")
	assert.Contains(t, body, "Humi  40.00 %")
	assert.Contains(t, body, "Press 1013.25 hPa")

	rec = httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRenderHourlyAvgTable(t *testing.T) {
	hour := time.Date(2024, 11, 6, 15, 0, 0, 0, time.Local)
	prev := hour.Add(-time.Hour)

	table := renderHourlyAvgTable(
		[]metrics.Value{{T: prev, V: 21}, {T: hour, V: 22.5}},
		[]metrics.Value{{T: prev, V: 40}, {T: hour, V: 41}},
		[]metrics.Value{{T: hour, V: 1006.53}},
	)

	lines := strings.Split(strings.TrimSpace(table), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "| 2024-11-06 14h  |       ~  21.00 |          40.00 |           0.00 |", lines[3])
	assert.Equal(t, "| 2024-11-06 15h  |       ^  22.50 |          41.00 |        1006.53 |", lines[4])
}

func TestRenderHourlyAvgTableEmpty(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Contains(t, renderHourlyAvgTable(nil, nil, nil), "no data yet")
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	sensor := &fakeSensor{}
	sensor.set(20, 50, 1000, nil)
	s := New(sensor, &homekit.NoopHap{}, newFakeMetrics(), WithAddr("127.0.0.1:0"), WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingNotifier) Notify(_, _ string) error {
	close(b.entered)
	<-b.release
	return nil
}

func TestNotifyDoesNotBlockReaders(t *testing.T) {
	sensor := &fakeSensor{}
	sensor.set(0, 0, 0, &testError{msg: "nack"})
	n := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(sensor, &homekit.NoopHap{}, newFakeMetrics(), WithNotifier(n))

	pulled := make(chan struct{})
	go func() {
		s.pullDataFromSensor()
		close(pulled)
	}()
	defer func() {
		close(n.release)
		<-pulled
	}()

	select {
	case <-n.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("notifier was not called")
	}

	served := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/measurement", nil))
		served <- rec
	}()

	select {
	case rec := <-served:
		require.Equal(t, http.StatusOK, rec.Code)
		var resp measurementResp
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "offline", resp.Status)
		assert.Equal(t, "nack", resp.Error)
	case <-time.After(time.Second):
		t.Fatal("/api/measurement waited for the notifier")
	}

	done := make(chan struct{})
	go func() {
		s.pushDataToHK()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pushDataToHK waited for the notifier")
	}
}

func TestRenderTendency(t *testing.T) {
	assert.Empty(t, renderTendency(nil))
	assert.Empty(t, renderTendency([]float64{1000}))
	assert.Equal(t, "(+1.50 hPa / 3h)", renderTendency([]float64{1000, 1000.5, 1001.5}))
	assert.Equal(t, "(-2.00 hPa / 3h)", renderTendency([]float64{1003, 1001}))
}

func TestDashboardTendency(t *testing.T) {
	m := newFakeMetrics()
	m.series[pressureKey] = []float64{1005, 1004, 1003.2}
	s := New(&fakeSensor{}, &homekit.NoopHap{}, m)

	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, rec.Body.String(), "(-1.80 hPa / 3h)")
}

// Helper type for testing errors
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
