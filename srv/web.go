package srv

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/egregors/hkenv/internal/metrics"
	"github.com/egregors/hkenv/log"
	"github.com/egregors/hkenv/utils/bp"
)

const (
	historyWindow  = 24 * time.Hour
	tendencyWindow = 3 * time.Hour
	plotRows       = 4
)

var historyKeys = map[string]string{
	"temperature": temperatureKey,
	"humidity":    humidityKey,
	"pressure":    pressureKey,
}

type measurementResp struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Pressure    float64   `json:"pressure"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type historyPoint struct {
	T time.Time `json:"t"`
	V float64   `json:"v"`
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/measurement", s.handleMeasurement).Methods(http.MethodGet)
	api.HandleFunc("/calibration", s.handleCalibration).Methods(http.MethodGet)
	api.HandleFunc("/history/{key}", s.handleHistory).Methods(http.MethodGet)

	return r
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	temp := s.metrics.Avg(temperatureKey, historyWindow)
	humi := s.metrics.Avg(humidityKey, historyWindow)
	press := s.metrics.Avg(pressureKey, historyWindow)

	pressVals := make([]float64, 0, len(press))
	for _, v := range press {
		pressVals = append(pressVals, v.V)
	}

	_, _ = fmt.Fprintf(
		w,
		"%s\nTemp  %0.2f °C\nHumi  %0.2f %%\nPress %0.2f hPa %s\n\n%s\n\n%s\n",
		s.title(),
		s.currT, s.currH, s.currP,
		renderTendency(s.metrics.Series(pressureKey, tendencyWindow)),
		bp.SimplePlot(plotRows, pressVals),
		renderHourlyAvgTable(temp, humi, press),
	)
}

func (s *Server) handleMeasurement(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	resp := measurementResp{
		Temperature: s.currT,
		Humidity:    s.currH,
		Pressure:    s.currP,
		Status:      s.sensorStatus.String(),
		UpdatedAt:   s.updatedAt,
	}
	if s.sensorErr != nil {
		resp.Error = s.sensorErr.Error()
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCalibration(w http.ResponseWriter, _ *http.Request) {
	cp, ok := s.climate.(CalibrationProvider)
	if !ok {
		http.Error(w, "calibration is not available for this sensor", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, cp.Calibration())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	key, ok := historyKeys[mux.Vars(r)["key"]]
	if !ok {
		http.Error(w, "unknown metric", http.StatusNotFound)
		return
	}

	avg := s.metrics.Avg(key, historyWindow)
	res := make([]historyPoint, 0, len(avg))
	for _, v := range avg {
		res = append(res, historyPoint{T: v.T, V: v.V})
	}

	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Erro.Printf("can't write response: %s", err.Error())
	}
}

// renderTendency shows the pressure change over the series, the usual
// barometric 3h tendency.
func renderTendency(series []float64) string {
	if len(series) < 2 {
		return ""
	}

	return fmt.Sprintf("(%+.2f hPa / %.0fh)", series[len(series)-1]-series[0], tendencyWindow.Hours())
}

// renderHourlyAvgTable merges hourly averages by hour. The trend mark
// compares each hour's temperature with the previous one.
func renderHourlyAvgTable(hourlyAverageT, hourlyAverageH, hourlyAverageP []metrics.Value) string {
	const line = "+-----------------+----------------+----------------+----------------+\n"

	var builder strings.Builder
	builder.WriteString(line)
	builder.WriteString("|  Hour           |       T        |        H       |        P       |\n")
	builder.WriteString(line)

	merge := make(map[time.Time][]float64)
	collect := func(vals []metrics.Value, idx int) {
		for _, v := range vals {
			if _, ok := merge[v.T]; !ok {
				merge[v.T] = make([]float64, 3)
			}
			merge[v.T][idx] = v.V
		}
	}
	collect(hourlyAverageT, 0)
	collect(hourlyAverageH, 1)
	collect(hourlyAverageP, 2)

	if len(merge) == 0 {
		builder.WriteString(fmt.Sprintf("| %-66s |\n", "no data yet"))
		builder.WriteString(line)

		return builder.String()
	}

	hours := make([]time.Time, 0, len(merge))
	for k := range merge {
		hours = append(hours, k)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	up, down, same := "^", "v", "~"
	prevT := merge[hours[0]][0]
	for _, hour := range hours {
		var progMark string
		val := merge[hour]
		switch {
		case val[0] > prevT:
			progMark = up
		case val[0] < prevT:
			progMark = down
		default:
			progMark = same
		}

		builder.WriteString(fmt.Sprintf(
			"| %-15s | %7s%7.2f | %14.2f | %14.2f |\n",
			hour.Format("2006-01-02 15h"), progMark, val[0], val[1], val[2],
		))
		prevT = val[0]
	}

	builder.WriteString(line)

	return builder.String()
}
