// Command effectcam runs a synthetic camera through an effect chain and
// streams the processed frames as RTP over UDP.
//
// Usage:
//
//	effectcam --config effects.yaml --duration 10s --addr 127.0.0.1:5004
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opd-ai/videoeffector/capture"
	"github.com/opd-ai/videoeffector/config"
	"github.com/opd-ai/videoeffector/effector"
	"github.com/opd-ai/videoeffector/sink"
	"github.com/opd-ai/videoeffector/synthetic"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [flags]\n", os.Args[0])
		pflag.PrintDefaults()
	}

	configPath := pflag.String("config", "", "path to a YAML configuration file")
	logLevel := pflag.String("log-level", "", "log level (overrides the configuration)")
	duration := pflag.Duration("duration", 0, "stop after this long; zero runs until interrupted")
	addr := pflag.String("addr", "", "UDP destination for RTP (overrides the configuration)")
	pflag.Parse()

	cfg, err := loadConfig(*configPath, *logLevel, *addr)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("effectcam failed")
	}
}

func loadConfig(path, logLevel, addr string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if addr != "" {
		cfg.Sink.Address = addr
	}
	return cfg, cfg.Validate()
}

func pixelFormat(name string) capture.PixelFormat {
	if strings.EqualFold(name, config.FormatNV21) {
		return capture.FormatNV21
	}
	return capture.FormatI420
}

func run(ctx context.Context, cfg *config.Config) error {
	effects, err := effector.FromConfig(cfg.Effects)
	if err != nil {
		return fmt.Errorf("build effects: %w", err)
	}

	format := pixelFormat(cfg.Capture.Format)
	capturerOpts := []synthetic.Option{synthetic.WithFormat(format)}
	if strings.EqualFold(cfg.Capture.Mode, config.ModeTexture) {
		capturerOpts = append(capturerOpts, synthetic.WithTextureFrames())
	}
	capturer := synthetic.NewCapturer(capturerOpts...)

	conn, err := net.Dial("udp", cfg.Sink.Address)
	if err != nil {
		capturer.Dispose()
		return fmt.Errorf("dial %s: %w", cfg.Sink.Address, err)
	}
	defer conn.Close()

	consumer, err := sink.NewRTPSink(conn, capturer,
		sink.WithPayloadType(cfg.Sink.PayloadType),
		sink.WithMTU(cfg.Sink.MTU))
	if err != nil {
		capturer.Dispose()
		return fmt.Errorf("create sink: %w", err)
	}

	fx := effector.New(effector.WithLayout(format), effector.WithEffects(effects...))

	proxy, err := capture.NewObserverProxy(capturer, consumer, fx,
		capture.WithInitTimeout(cfg.Capture.InitTimeout))
	if err != nil {
		capturer.Dispose()
		return fmt.Errorf("bind observer: %w", err)
	}
	capturer.Initialize(proxy)

	session, err := capture.NewSession(capturer)
	if err != nil {
		capturer.Dispose()
		return err
	}
	defer session.Close()

	if err := session.Start(cfg.Capture.Width, cfg.Capture.Height, cfg.Capture.FPS); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "run",
		"address":  cfg.Sink.Address,
		"ssrc":     consumer.SSRC(),
		"effects":  fx.Effects(),
	}).Info("Streaming")

	report := time.NewTicker(5 * time.Second)
	defer report.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := session.Stop(); err != nil {
				return err
			}
			logStats(proxy, consumer)
			return nil
		case <-report.C:
			logStats(proxy, consumer)
		}
	}
}

func logStats(proxy *capture.ObserverProxy, consumer *sink.RTPSink) {
	ps := proxy.Stats()
	ss := consumer.Stats()
	logrus.WithFields(logrus.Fields{
		"buffer_frames":     ps.BufferFrames,
		"processed_frames":  ps.ProcessedFrames,
		"texture_frames":    ps.TextureFrames,
		"textures_returned": ps.TexturesReturned,
		"processing_errors": ps.ProcessingErrors,
		"rtp_packets":       ss.Packets,
		"rtp_bytes":         ss.Bytes,
		"write_errors":      ss.WriteErrors,
	}).Info("Pipeline stats")
}
