package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"ledimmer/internal/config"
	"ledimmer/internal/dimmer"
	"ledimmer/internal/keyboard"
	"ledimmer/internal/metrics"
	"ledimmer/internal/pwm"
)

var version = "change-me"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	a, err := config.ParseArgs(args, version)
	if err != nil {
		log.WithError(err).Error("ledimmer")
		return 1
	}
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		log.WithError(err).WithField("path", a.ConfigPath).Error("config load failed")
		return 1
	}
	setupLogging(cfg.Log.Level, a.Debug)

	log.WithField("version", version).Info("ledimmer starting")
	defer log.Info("ledimmer exiting")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	metricsDone := make(chan struct{})
	if cfg.Metrics.Addr != "" {
		go func() {
			defer close(metricsDone)
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.WithError(err).Warn("metrics listener stopped")
			}
		}()
	} else {
		close(metricsDone)
	}
	defer func() {
		cancel()
		<-metricsDone
	}()

	host, err := pwm.NewHost(pwm.Config{
		Backend:   cfg.Output.Backend,
		SysfsBase: cfg.Output.SysfsBase,
		Chip:      cfg.Output.Chip,
		Channel:   cfg.Output.Channel,
		GPIOChip:  cfg.Output.GPIOChip,
		LEDPath:   cfg.Output.LEDPath,
	})
	if err != nil {
		log.WithError(err).Error("pwm host init failed")
		return 1
	}

	d := dimmer.New(
		func() (dimmer.Input, error) { return openTerminal(cfg.Input.Device) },
		pwmHost{host},
		dimmer.WithPollInterval(cfg.Input.PollInterval),
		dimmer.WithObserver(m),
	)
	if err := d.Start(); err != nil {
		log.WithError(err).Error("startup failed")
		return 1
	}
	log.Info("use UP and DOWN to change the brightness of the LED, press ESC to quit")

	if err := d.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("stopped by signal")
		} else {
			log.WithError(err).Error("dimmer failed")
		}
		return 1
	}
	return 0
}

func setupLogging(level string, debug bool) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if debug {
		log.SetLevel(log.DebugLevel)
		return
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithError(err).Warn("invalid log level, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func openTerminal(device string) (dimmer.Input, error) {
	t, err := keyboard.Open(device)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// pwmHost adapts *pwm.Host to dimmer.Host.
type pwmHost struct {
	*pwm.Host
}

func (h pwmHost) Output(pin, freqHz int) (dimmer.Output, error) {
	p, err := h.PWM(pin, freqHz)
	if err != nil {
		return nil, err
	}
	return p, nil
}
