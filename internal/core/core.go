// Package core contains the main struct of the software.
package core

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"

	"github.com/bluenviron/framesync/internal/conf"
	"github.com/bluenviron/framesync/internal/confwatcher"
	"github.com/bluenviron/framesync/internal/correlator"
	"github.com/bluenviron/framesync/internal/logger"
	"github.com/bluenviron/framesync/internal/metrics"
	"github.com/bluenviron/framesync/internal/pprof"
	"github.com/bluenviron/framesync/internal/renderloop"
	"github.com/bluenviron/framesync/internal/simulator"
)

var version = "v0.0.0"

var defaultConfPaths = []string{
	"framesync.yml",
	"/usr/local/etc/framesync.yml",
	"/usr/etc/framesync.yml",
	"/etc/framesync/framesync.yml",
}

var cli struct {
	Version  bool   `help:"print version"`
	Confpath string `arg:"" default:""`
}

// Core is an instance of framesync.
type Core struct {
	ctx         context.Context
	ctxCancel   func()
	confPath    string
	conf        *conf.Conf
	logger      *logger.Logger
	surface     *simulator.Surface
	correlator  *correlator.Correlator
	decoder     *simulator.Decoder
	renderLoop  *renderloop.Loop
	metrics     *metrics.Metrics
	pprof       *pprof.PPROF
	confWatcher *confwatcher.ConfWatcher

	// out
	done chan struct{}
}

// New allocates a Core.
func New(args []string) (*Core, bool) {
	parser, err := kong.New(&cli,
		kong.Description("framesync "+version),
		kong.UsageOnError(),
		kong.ValueFormatter(func(value *kong.Value) string {
			switch value.Name {
			case "confpath":
				return "path to a config file. The default is framesync.yml."

			default:
				return kong.DefaultHelpValueFormatter(value)
			}
		}))
	if err != nil {
		panic(err)
	}

	_, err = parser.Parse(args)
	parser.FatalIfErrorf(err)

	if cli.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	p := &Core{
		ctx:       ctx,
		ctxCancel: ctxCancel,
		done:      make(chan struct{}),
	}

	p.conf, p.confPath, err = conf.Load(cli.Confpath, defaultConfPaths)
	if err != nil {
		fmt.Printf("ERR: %s\n", err)
		return nil, false
	}

	err = p.createResources(true)
	if err != nil {
		if p.logger != nil {
			p.Log(logger.Error, "%s", err)
		} else {
			fmt.Printf("ERR: %s\n", err)
		}
		p.closeResources(nil)
		return nil, false
	}

	go p.run()

	return p, true
}

// Close closes Core and waits for all goroutines to return.
func (p *Core) Close() {
	p.ctxCancel()
	<-p.done
}

// Wait waits for the Core to exit.
func (p *Core) Wait() {
	<-p.done
}

// Log implements logger.Writer.
func (p *Core) Log(level logger.Level, format string, args ...interface{}) {
	p.logger.Log(level, format, args...)
}

func (p *Core) run() {
	defer close(p.done)

	confChanged := func() chan struct{} {
		if p.confWatcher != nil {
			return p.confWatcher.Watch()
		}
		return make(chan struct{})
	}()

	var durationElapsed <-chan time.Time
	if p.conf.SimDuration > 0 {
		durationElapsed = time.After(time.Duration(p.conf.SimDuration))
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

outer:
	for {
		select {
		case <-confChanged:
			p.Log(logger.Info, "reloading configuration (file changed)")

			newConf, _, err := conf.Load(p.confPath, nil)
			if err != nil {
				p.Log(logger.Error, "%s", err)
				break outer
			}

			err = p.reloadConf(newConf)
			if err != nil {
				p.Log(logger.Error, "%s", err)
				break outer
			}

		case err := <-p.decoderError():
			p.Log(logger.Error, "%s", err)
			break outer

		case <-durationElapsed:
			p.Log(logger.Info, "simulation duration elapsed, shutting down")
			break outer

		case <-interrupt:
			p.Log(logger.Info, "shutting down gracefully")
			break outer

		case <-p.ctx.Done():
			break outer
		}
	}

	p.ctxCancel()

	p.closeResources(nil)
}

func (p *Core) decoderError() chan error {
	if p.decoder != nil {
		return p.decoder.Error()
	}
	return nil
}

func (p *Core) createResources(initial bool) error {
	var err error

	if p.logger == nil {
		i := &logger.Logger{
			Level:        logger.Level(p.conf.LogLevel),
			Destinations: p.conf.LogDestinations,
			Structured:   p.conf.LogStructured,
			File:         p.conf.LogFile,
			SysLogPrefix: "framesync",
		}
		err = i.Initialize()
		if err != nil {
			return err
		}
		p.logger = i
	}

	if initial {
		p.Log(logger.Info, "framesync %s", version)

		if p.confPath != "" {
			p.Log(logger.Debug, "configuration loaded from %s", p.confPath)
		} else {
			p.Log(logger.Warn, "configuration file not found (looked in %v), using an empty configuration",
				defaultConfPaths)
		}

		gin.SetMode(gin.ReleaseMode)
	}

	if p.correlator == nil {
		p.surface = &simulator.Surface{}

		i := &correlator.Correlator{
			Mode:                  correlator.Mode(p.conf.CorrelationMode),
			Source:                p.surface,
			MaxEntries:            p.conf.CorrelationMaxEntries,
			MaxAge:                time.Duration(p.conf.CorrelationMaxAge),
			ShardCount:            p.conf.CorrelationShards,
			ImageTimestampDivisor: p.conf.ImageTimestampDivisor,
			InitiallyPending:      true,
			Parent:                p,
		}
		err = i.Initialize()
		if err != nil {
			return err
		}
		p.correlator = i

		p.surface.OnFrameAvailable = p.correlator.OnFrameAvailable
	}

	if p.renderLoop == nil {
		i := &renderloop.Loop{
			RefreshRate: p.conf.SimRefreshRate,
			Correlator:  p.correlator,
			Parent:      p,
		}
		err = i.Initialize()
		if err != nil {
			return err
		}
		p.renderLoop = i
	}

	if p.decoder == nil {
		i := &simulator.Decoder{
			FrameRate:           p.conf.SimFrameRate,
			DropRatio:           p.conf.SimDropRatio,
			MetadataDelay:       time.Duration(p.conf.SimMetadataDelay),
			TimestampMultiplier: p.conf.ImageTimestampDivisor,
			Seed:                uint64(time.Now().UnixNano()),
			Surface:             p.surface,
			Receiver:            p.correlator,
			Parent:              p,
		}
		err = i.Initialize()
		if err != nil {
			return err
		}
		p.decoder = i
	}

	if p.conf.Metrics &&
		p.metrics == nil {
		i := &metrics.Metrics{
			Address:     p.conf.MetricsAddress,
			ReadTimeout: p.conf.ReadTimeout,
			Correlator:  p.correlator,
			Parent:      p,
		}
		err = i.Initialize()
		if err != nil {
			return err
		}
		p.metrics = i
	}

	if p.conf.PPROF &&
		p.pprof == nil {
		i := &pprof.PPROF{
			Address:     p.conf.PPROFAddress,
			ReadTimeout: p.conf.ReadTimeout,
			Parent:      p,
		}
		err = i.Initialize()
		if err != nil {
			return err
		}
		p.pprof = i
	}

	if initial && p.confPath != "" {
		p.confWatcher = &confwatcher.ConfWatcher{FilePath: p.confPath}
		err = p.confWatcher.Initialize()
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *Core) closeResources(newConf *conf.Conf) {
	closeLogger := newConf == nil ||
		newConf.LogLevel != p.conf.LogLevel ||
		!reflect.DeepEqual(newConf.LogDestinations, p.conf.LogDestinations) ||
		newConf.LogStructured != p.conf.LogStructured ||
		newConf.LogFile != p.conf.LogFile

	closeCorrelator := newConf == nil ||
		newConf.CorrelationMode != p.conf.CorrelationMode ||
		newConf.CorrelationMaxEntries != p.conf.CorrelationMaxEntries ||
		newConf.CorrelationMaxAge != p.conf.CorrelationMaxAge ||
		newConf.CorrelationShards != p.conf.CorrelationShards ||
		newConf.ImageTimestampDivisor != p.conf.ImageTimestampDivisor ||
		closeLogger

	closeRenderLoop := newConf == nil ||
		newConf.SimRefreshRate != p.conf.SimRefreshRate ||
		closeCorrelator

	closeDecoder := newConf == nil ||
		newConf.SimFrameRate != p.conf.SimFrameRate ||
		newConf.SimDropRatio != p.conf.SimDropRatio ||
		newConf.SimMetadataDelay != p.conf.SimMetadataDelay ||
		closeCorrelator

	closeMetrics := newConf == nil ||
		newConf.Metrics != p.conf.Metrics ||
		newConf.MetricsAddress != p.conf.MetricsAddress ||
		newConf.ReadTimeout != p.conf.ReadTimeout ||
		closeCorrelator

	closePPROF := newConf == nil ||
		newConf.PPROF != p.conf.PPROF ||
		newConf.PPROFAddress != p.conf.PPROFAddress ||
		newConf.ReadTimeout != p.conf.ReadTimeout ||
		closeLogger

	if newConf == nil && p.confWatcher != nil {
		p.confWatcher.Close()
		p.confWatcher = nil
	}

	if closePPROF && p.pprof != nil {
		p.pprof.Close()
		p.pprof = nil
	}

	if closeMetrics && p.metrics != nil {
		p.metrics.Close()
		p.metrics = nil
	}

	if closeDecoder && p.decoder != nil {
		p.decoder.Close()
		p.decoder = nil
	}

	if closeRenderLoop && p.renderLoop != nil {
		p.renderLoop.Close()
		p.renderLoop = nil
	}

	if closeCorrelator && p.correlator != nil {
		p.logStats()
		p.correlator.Close()
		p.correlator = nil
		p.surface = nil
	}

	if closeLogger && p.logger != nil {
		p.logger.Close()
		p.logger = nil
	}
}

func (p *Core) reloadConf(newConf *conf.Conf) error {
	p.closeResources(newConf)
	p.conf = newConf
	return p.createResources(false)
}

func (p *Core) logStats() {
	st := p.correlator.Stats()
	p.Log(logger.Info, "%d frames latched, %d matched, %d fallbacks, %d entries evicted",
		st.Frames, st.Matched, st.Fallbacks, st.Table.Evicted)
}
