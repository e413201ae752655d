package main

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/alecthomas/kingpin.v2"

	"jt809-proxy/capture"
	"jt809-proxy/config"
	"jt809-proxy/jt809"
)

var (
	configPath = kingpin.Flag("config", "YAML configuration file").Required().ExistingFile()
	verbose    = kingpin.Flag("verbose", "Log debug messages").Bool()
)

var (
	framesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jt809_logger_frames_total",
		Help: "Frames read by the logger",
	})
	frameErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jt809_logger_frame_errors_total",
		Help: "Frames that could not be decoded to positions",
	})
	positionsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jt809_logger_positions_total",
		Help: "Vehicle positions written to the output",
	})
)

type frame struct {
	at   time.Time
	data []byte
}

func main() {
	kingpin.Version("dev")
	kingpin.HelpFlag.Short('h')
	kingpin.CommandLine.UsageWriter(os.Stdout)
	kingpin.Parse()

	logger := log.NewLogfmtLogger(os.Stderr)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if !*verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		level.Error(logger).Log("config", *configPath, "err", err)
		os.Exit(1)
	}

	go metricServer(logger, cfg.Metrics)

	ch := make(chan frame, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		d := &decoder{
			parser:          jt809.Parser{Version: cfg.ProtocolVersion},
			requireChecksum: cfg.RequireChecksum,
			logger:          logger,
		}
		w := &rotating{w: newWriter(logger, cfg.Output.Kind, cfg.Output.Dir)}
		if err := writePositions(logger, d, w, ch); err != nil {
			// Almost certainly unrecoverable.
			panic(err)
		}
	}()

	if cfg.Replay != "" {
		if err := replay(cfg.Replay, ch); err != nil {
			level.Error(logger).Log("replay", cfg.Replay, "err", err)
		}
		close(ch)
		<-done
		return
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.Remote)
	if err != nil {
		level.Error(logger).Log("remote", cfg.Remote, "err", err)
		os.Exit(1)
	}
	consume(logger, addr, ch)
}

func metricServer(logger log.Logger, cfg config.MetricsConfig) {
	http.Handle(cfg.Path, promhttp.Handler())
	err := http.ListenAndServe(cfg.Listen, nil)
	if err != nil {
		level.Error(logger).Log("metrics", cfg.Listen, "err", err)
	}
}

func writePositions(logger log.Logger, d *decoder, w *rotating, ch <-chan frame) error {
	defer w.Close()

	count := 0
	for f := range ch {
		framesDecoded.Inc()
		positions, err := d.positions(f.at, f.data)
		if err != nil {
			frameErrors.Inc()
			level.Warn(logger).Log("err", err)
			continue
		}

		for _, p := range positions {
			if err := w.Write(p); err != nil {
				return err
			}
			positionsWritten.Inc()

			count++
			if count%1000 == 0 {
				level.Info(logger).Log("positions", count, "plate", p.Plate, "lat", p.Latitude, "lon", p.Longitude)
			}
		}
	}

	return nil
}

// replay feeds frames from a capture file, stamped with their recorded time.
func replay(path string, ch chan<- frame) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := capture.NewReader(f)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		ch <- frame{at: rec.Timestamp, data: rec.Frame}
	}
}

func consume(logger log.Logger, addr *net.TCPAddr, ch chan<- frame) {
	backoff := time.Duration(0)
	lastErrorLog := time.Time{}

	for {
		time.Sleep(backoff)

		if time.Now().After(lastErrorLog.Add(time.Hour)) {
			level.Info(logger).Log("addr", addr, "action", "connecting")
		}

		conn, err := net.DialTCP("tcp", nil, addr)
		if err != nil {
			if time.Now().After(lastErrorLog.Add(time.Hour)) {
				level.Error(logger).Log("addr", addr, "err", err)
				lastErrorLog = time.Now()
			}

			backoff = (time.Second + backoff) * 2
			if backoff > time.Minute {
				backoff = time.Minute
			}

			continue
		}

		level.Info(logger).Log("addr", addr, "action", "connected")
		backoff = time.Duration(0)
		runConnection(logger, conn, ch)
	}
}

func runConnection(logger log.Logger, conn *net.TCPConn, ch chan<- frame) {
	defer conn.Close()
	defer level.Warn(logger).Log("addr", conn.RemoteAddr().String(), "action", "disconnected")

	conn.CloseWrite()
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(time.Minute)
	br := bufio.NewReader(conn)

	seenFirstFrame := false
	for {
		b, err := jt809.ReadFrame(br)
		if errors.Is(err, jt809.ErrInvalidFrame) || errors.Is(err, jt809.ErrFrameTooLarge) {
			if seenFirstFrame {
				level.Warn(logger).Log("addr", conn.RemoteAddr().String(), "err", err)
			}
			continue
		}

		if err != nil {
			level.Error(logger).Log("err", err)
			break
		}

		if !seenFirstFrame {
			level.Info(logger).Log("addr", conn.RemoteAddr().String(), "action", "seenFirstFrame")
		}

		seenFirstFrame = true

		ch <- frame{at: time.Now(), data: b}
	}
}
