package main

import (
	"bufio"
	"fmt"
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
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"jt809-proxy/capture"
	"jt809-proxy/jt809"
)

var (
	listenAddress    = kingpin.Flag("listen-address", "Listen address for downstream clients").Default("localhost:9009").String()
	remotes          = kingpin.Flag("remote", "JT809 upstream link(s) to connect to").Required().TCPList()
	protocolVersion  = kingpin.Flag("protocol-version", "JT809 protocol version").Default("2011").Enum("2011", "2019")
	dumpMessages     = kingpin.Flag("dumpMessages", "Hex-dump all frames").Bool()
	dropInvalid      = kingpin.Flag("drop-invalid", "Do not forward frames that fail the CRC check").Bool()
	capturePath      = kingpin.Flag("capture", "Append every frame read to this capture file").String()
	webListenAddress = kingpin.Flag("web.listen-address", "Address on which to expose metrics.").Default(":9798").String()
	metricsEndpoint  = kingpin.Flag("web.telemetry-path", "Path under which to expose metrics.").Default("/metrics").String()
)

// Metrics
var (
	framesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jt809_frames_read",
		Help: "The total number of JT809 frames read from upstream links",
	})
	framesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jt809_frames_written",
		Help: "The total number of JT809 frames written to clients",
	})
	checksumFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jt809_checksum_failures_total",
		Help: "Frames whose CRC did not match their content",
	})
	decodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jt809_decode_errors_total",
			Help: "Frames that could not be decoded",
		},
		[]string{"kind"},
	)
	messagesByID = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jt809_messages_total",
			Help: "Decoded frames by message ID",
		},
		[]string{"msg_id"},
	)
	inboundConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inbound_connections",
		Help: "Number of inbound connections",
	})
	outboundConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbound_connections",
		Help: "Number of outbound connections",
	})
	ioErrorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ioerrors_total",
			Help: `Total IO errors`,
		},
		[]string{"op"},
	)
)

type frame struct {
	at     time.Time
	remote string
	data   []byte
}

func main() {
	kingpin.Version("dev")
	kingpin.HelpFlag.Short('h')
	kingpin.CommandLine.UsageWriter(os.Stdout)
	kingpin.Parse()

	logger := log.NewLogfmtLogger(os.Stderr)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if !*dumpMessages {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	v, err := jt809.ParseVersion(*protocolVersion)
	if err != nil {
		panic(err)
	}
	parser := jt809.Parser{Version: v}

	var rec *capture.Writer
	if *capturePath != "" {
		f, err := os.OpenFile(*capturePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		rec = capture.NewWriter(f)
	}

	listener, err := net.Listen("tcp", *listenAddress)
	if err != nil {
		panic(err)
	}

	go metricServer()
	runProxy(logger, parser, rec, []*net.TCPListener{listener.(*net.TCPListener)}, *remotes)
}

func metricServer() {
	http.Handle(*metricsEndpoint, promhttp.Handler())
	err := http.ListenAndServe(*webListenAddress, nil)
	if err != nil {
		panic(err)
	}
}

func runProxy(logger log.Logger, parser jt809.Parser, rec *capture.Writer, listeners []*net.TCPListener, remotes []*net.TCPAddr) {
	newConnection := make(chan *net.TCPConn, 4)
	for _, l := range listeners {
		go runListener(logger, l, newConnection)
	}

	newFrame := make(chan frame, 16)
	for _, r := range remotes {
		go runRemote(logger, parser, r, newFrame)
	}

	clients := make(map[*net.TCPConn]struct{})

	for {
		select {
		case c := <-newConnection:
			level.Info(logger).Log("new_conn", c.RemoteAddr())
			clients[c] = struct{}{}
			c.CloseRead()
			c.SetKeepAlive(true)
			c.SetKeepAlivePeriod(time.Minute)
		case f := <-newFrame:
			if rec != nil {
				err := rec.Write(capture.Record{Timestamp: f.at, Remote: f.remote, Frame: f.data})
				if err != nil {
					level.Error(logger).Log("op", "capture", "err", err)
				}
			}

			for c := range clients {
				c.SetWriteDeadline(time.Now().Add(2 * time.Second))
				_, err := c.Write(f.data)
				if err != nil {
					ioError(logger, c.RemoteAddr(), "write", err)
					delete(clients, c)
					c.Close()
					continue
				}
			}

			framesWritten.Inc()
		}

		inboundConnections.Set(float64(len(clients)))
	}
}

func runListener(logger log.Logger, l *net.TCPListener, ch chan<- *net.TCPConn) {
	defer l.Close()
	for {
		conn, err := l.AcceptTCP()
		if err != nil {
			level.Error(logger).Log("listener", l.Addr(), "err", err)
			time.Sleep(time.Second)
			continue
		}

		ch <- conn
	}
}

func runRemote(logger log.Logger, parser jt809.Parser, addr *net.TCPAddr, ch chan<- frame) {
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
		runRemoteConnection(logger, parser, conn, ch)
	}
}

func runRemoteConnection(logger log.Logger, parser jt809.Parser, conn *net.TCPConn, ch chan<- frame) {
	defer conn.Close()
	defer level.Warn(logger).Log("addr", conn.RemoteAddr().String(), "action", "disconnected")

	outboundConnections.Inc()
	defer outboundConnections.Dec()

	conn.CloseWrite()
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(time.Minute)

	remote := conn.RemoteAddr().String()
	var r io.Reader = conn
	if *dumpMessages {
		r = NewLoggingReader(r, log.With(logger, "addr", remote))
	}

	br := bufio.NewReader(r)

	seenFirstFrame := false
	for {
		b, err := jt809.ReadFrame(br)
		if errors.Is(err, jt809.ErrInvalidFrame) || errors.Is(err, jt809.ErrFrameTooLarge) {
			decodeErrors.WithLabelValues(errorKind(err)).Inc()
			// Don't log if we have just connected - may get partial frames.
			if seenFirstFrame {
				level.Warn(logger).Log("addr", remote, "err", err)
			}

			// ReadFrame will have consumed at least one byte, so try again with remaining buffer
			continue
		}

		if err != nil {
			ioError(logger, conn.RemoteAddr(), "read", err)
			break
		}

		if !seenFirstFrame {
			level.Info(logger).Log("addr", remote, "action", "seenFirstFrame")
		}
		seenFirstFrame = true

		if !inspect(logger, parser, remote, b) {
			continue
		}

		framesRead.Inc()
		ch <- frame{at: time.Now(), remote: remote, data: b}
	}
}

// inspect decodes a frame for metrics and logging, and reports whether it
// should be forwarded.
func inspect(logger log.Logger, parser jt809.Parser, remote string, b []byte) bool {
	pkg, err := parser.Parse(b)
	if err != nil {
		decodeErrors.WithLabelValues(errorKind(err)).Inc()
		level.Warn(logger).Log("addr", remote, "err", err)
		return false
	}

	msgID := fmt.Sprintf("0x%04X", pkg.Header.MsgID)
	messagesByID.WithLabelValues(msgID).Inc()

	if !pkg.ChecksumValid {
		checksumFailures.Inc()
		level.Warn(logger).Log("addr", remote, "msg_id", msgID, "sn", pkg.Header.MsgSN, "err", "checksum mismatch", "crc", fmt.Sprintf("%04X", pkg.CRC))
		if *dropInvalid {
			return false
		}
	}

	if *dumpMessages {
		body, _ := jt809.NewReader(pkg.Body).ReadHex(len(pkg.Body))
		level.Debug(logger).Log("addr", remote, "msg_id", msgID, "sn", pkg.Header.MsgSN, "encrypted", pkg.Encrypted(), "body", body)
	}
	return true
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, jt809.ErrInvalidFrame):
		return "invalid_frame"
	case errors.Is(err, jt809.ErrFrameTooLarge):
		return "too_large"
	case errors.Is(err, jt809.ErrShortBuffer):
		return "short"
	case errors.Is(err, jt809.ErrNegativeRemaining):
		return "negative_length"
	}
	return "other"
}

func ioError(logger log.Logger, addr interface{}, op string, err error) {
	level.Error(logger).Log("addr", addr, "op", op, "err", err)
	ioErrorCounter.With(prometheus.Labels{
		"op": op,
	}).Inc()
}
