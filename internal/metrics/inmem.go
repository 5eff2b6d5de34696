package metrics

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/egregors/hkenv/log"
)

const (
	cleanerWorkerSleep = 30 * time.Second
	defaultDumpPath    = "hk-dump.gob"
)

type DumpFn func() error

type Option func(m *InMem)

func WithRetention(dur time.Duration) Option {
	return func(m *InMem) {
		m.retentionDuration = dur
	}
}

func WithBackup() Option {
	return func(m *InMem) {
		m.backup = true
	}
}

// WithAutosave dumps the time line every dur, so a crash loses at most dur
// of data. Requires WithBackup.
func WithAutosave(dur time.Duration) Option {
	return func(m *InMem) {
		m.autosave = dur
	}
}

func WithDumpPath(path string) Option {
	return func(m *InMem) {
		m.dumpPath = path
	}
}

type Value struct {
	T time.Time
	V float64
}

type valueChanMsg struct {
	key string
	m   Value
}

type InMem struct {
	mu            sync.RWMutex
	GaugeTimeLine map[string][]Value
	gaugeTLch     chan valueChanMsg
	done          chan struct{}
	stopOnce      sync.Once

	backup            bool
	autosave          time.Duration
	dumpPath          string
	retentionDuration time.Duration
}

func New(opts ...Option) (m *InMem, commitDump DumpFn) {
	m = &InMem{
		GaugeTimeLine: make(map[string][]Value),
		gaugeTLch:     make(chan valueChanMsg),
		done:          make(chan struct{}),
		dumpPath:      defaultDumpPath,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.backup {
		log.Info.Println("try to restore from dump")
		err := m.Restore()
		if err != nil {
			log.Warn.Printf("not this time: %s", err.Error())
		} else {
			log.Info.Println("got from dump:")
			for k, v := range m.GaugeTimeLine {
				log.Info.Printf("-- %s: %d", k, len(v))
			}
		}
	}

	go m.collector()
	go m.cleaner()
	if m.backup && m.autosave > 0 {
		go m.autosaver()
	}

	commitDump = func() error {
		log.Debg.Println("stop metrics workers")
		m.stopOnce.Do(func() { close(m.done) })

		if m.backup {
			return m.Dump()
		}

		return nil
	}

	return m, commitDump
}

func (m *InMem) Gauge(key string, val float64) {
	log.Debg.Printf("send: gauge %s: %v", key, val)
	msg := valueChanMsg{
		key: key,
		m:   Value{T: time.Now(), V: val},
	}

	go func() {
		select {
		case m.gaugeTLch <- msg:
		case <-m.done:
		}
	}()
}

// Series returns the values of key recorded within dur, oldest first.
func (m *InMem) Series(key string, dur time.Duration) []float64 {
	vals := m.window(key, dur)

	res := make([]float64, 0, len(vals))
	for _, v := range vals {
		res = append(res, v.V)
	}

	return res
}

// Avg returns hourly averages of key within dur, oldest hour first.
func (m *InMem) Avg(key string, dur time.Duration) []Value {
	durData := m.window(key, dur)
	if len(durData) == 0 {
		return nil
	}

	hAvg := make(map[time.Time][]float64)
	for _, v := range durData {
		t := v.T.Truncate(time.Hour)
		hAvg[t] = append(hAvg[t], v.V)
	}

	avg := make([]Value, 0, len(hAvg))
	for k, v := range hAvg {
		sum := 0.0
		for _, vv := range v {
			sum += vv
		}

		avg = append(avg, Value{T: k, V: sum / (float64(len(v)))})
	}

	sort.Slice(avg, func(i, j int) bool {
		return avg[i].T.Before(avg[j].T)
	})

	return avg
}

func (m *InMem) window(key string, dur time.Duration) []Value {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start, end := time.Now().Add(-dur), time.Now()
	var durData []Value
	for _, val := range m.GaugeTimeLine[key] {
		t := val.T
		if t.After(start) && !t.After(end) {
			durData = append(durData, val)
		}
	}

	sort.Slice(durData, func(i, j int) bool {
		return durData[i].T.Before(durData[j].T)
	})

	return durData
}

func (m *InMem) collector() {
	log.Debg.Println("collector started")
	for {
		select {
		case msg := <-m.gaugeTLch:
			log.Debg.Printf("got: gauge %s: %v at %v", msg.key, msg.m.V, msg.m.T)
			m.mu.Lock()
			m.GaugeTimeLine[msg.key] = append(m.GaugeTimeLine[msg.key], msg.m)
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}

func (m *InMem) cleaner() {
	if m.retentionDuration == 0 {
		log.Info.Println("retention isn't setted up")

		return
	}

	for {
		select {
		case <-time.After(cleanerWorkerSleep):
			m.cleanup(time.Now().Add(-m.retentionDuration))
		case <-m.done:
			return
		}
	}
}

func (m *InMem) cleanup(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log.Debg.Printf("cleanup. retention period: %v\n", m.retentionDuration)

	var totalVs, totalNewVs int
	for k, v := range m.GaugeTimeLine {
		var newV []Value
		for _, vv := range v {
			if vv.T.After(cutoff) {
				newV = append(newV, vv)
			}
		}
		totalVs += len(v)
		totalNewVs += len(newV)
		m.GaugeTimeLine[k] = newV
	}

	diff := totalVs - totalNewVs
	if diff != 0 {
		log.Debg.Printf("cleaner removed %d gauges by retention policy\n", diff)
	}
}

func (m *InMem) autosaver() {
	for {
		select {
		case <-time.After(m.autosave):
			if err := m.Dump(); err != nil {
				log.Warn.Printf("can't autosave metrics: %s", err.Error())
			}
		case <-m.done:
			return
		}
	}
}

func (m *InMem) Dump() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	buf := new(bytes.Buffer)
	encoder := gob.NewEncoder(buf)

	err := encoder.Encode(m.GaugeTimeLine)
	if err != nil {
		return fmt.Errorf("can't encode items: %w", err)
	}
	err = os.WriteFile(m.dumpPath, buf.Bytes(), 0o600)
	if err != nil {
		return fmt.Errorf("can't save dump: %w", err)
	}

	return nil
}

func (m *InMem) Restore() error {
	f, err := os.ReadFile(m.dumpPath)
	if err != nil {
		return fmt.Errorf("can't read dump: %w", err)
	}

	buf := bytes.NewBuffer(f)
	decoder := gob.NewDecoder(buf)

	m.mu.Lock()
	defer m.mu.Unlock()

	err = decoder.Decode(&m.GaugeTimeLine)
	if err != nil {
		return fmt.Errorf("can't decode items: %w", err)
	}

	return nil
}
