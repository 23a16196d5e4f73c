// Package conf contains the struct that holds the configuration of the software.
package conf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/bluenviron/framesync/internal/conf/env"
	"github.com/bluenviron/framesync/internal/conf/yamlwrapper"
	"github.com/bluenviron/framesync/internal/correlator"
	"github.com/bluenviron/framesync/internal/logger"
)

func firstThatExists(paths []string) string {
	for _, pa := range paths {
		_, err := os.Stat(pa)
		if err == nil {
			return pa
		}
	}
	return ""
}

// Conf is a configuration.
type Conf struct {
	// General
	LogLevel        LogLevel        `json:"logLevel"`
	LogDestinations LogDestinations `json:"logDestinations"`
	LogStructured   bool            `json:"logStructured"`
	LogFile         string          `json:"logFile"`
	ReadTimeout     Duration        `json:"readTimeout"`

	// Metrics
	Metrics        bool   `json:"metrics"`
	MetricsAddress string `json:"metricsAddress"`

	// PPROF
	PPROF        bool   `json:"pprof"`
	PPROFAddress string `json:"pprofAddress"`

	// Correlation
	CorrelationMode       CorrelationMode `json:"correlationMode"`
	CorrelationMaxEntries int             `json:"correlationMaxEntries"`
	CorrelationMaxAge     Duration        `json:"correlationMaxAge"`
	CorrelationShards     int             `json:"correlationShards"`
	ImageTimestampDivisor int64           `json:"imageTimestampDivisor"`

	// Simulator
	SimFrameRate     float64  `json:"simFrameRate"`
	SimRefreshRate   float64  `json:"simRefreshRate"`
	SimDropRatio     float64  `json:"simDropRatio"`
	SimMetadataDelay Duration `json:"simMetadataDelay"`
	SimDuration      Duration `json:"simDuration"`
}

func (conf *Conf) setDefaults() {
	// General
	conf.LogLevel = LogLevel(logger.Info)
	conf.LogDestinations = LogDestinations{logger.DestinationStdout}
	conf.LogFile = "framesync.log"
	conf.ReadTimeout = Duration(10 * time.Second)

	// Metrics
	conf.MetricsAddress = ":9998"

	// PPROF
	conf.PPROFAddress = ":9999"

	// Correlation
	conf.CorrelationMode = CorrelationMode(correlator.ModeCorrelate)
	conf.CorrelationMaxEntries = 256
	conf.CorrelationMaxAge = Duration(2 * time.Second)
	conf.CorrelationShards = 16
	conf.ImageTimestampDivisor = 1

	// Simulator
	conf.SimFrameRate = 60
	conf.SimRefreshRate = 72
	conf.SimDropRatio = 0.05
	conf.SimMetadataDelay = Duration(5 * time.Millisecond)
}

// Load loads a Conf.
// When fpath is empty, the first existing path in defaultConfPaths is used;
// if none exists, the default configuration is returned.
func Load(fpath string, defaultConfPaths []string) (*Conf, string, error) {
	conf := &Conf{}

	fpath, err := conf.loadFromFile(fpath, defaultConfPaths)
	if err != nil {
		return nil, "", err
	}

	err = env.Load("FRAMESYNC", conf)
	if err != nil {
		return nil, "", err
	}

	err = conf.Validate()
	if err != nil {
		return nil, "", err
	}

	return conf, fpath, nil
}

func (conf *Conf) loadFromFile(fpath string, defaultConfPaths []string) (string, error) {
	if fpath == "" {
		fpath = firstThatExists(defaultConfPaths)

		// when the configuration file is not explicitly set,
		// it is optional.
		if fpath == "" {
			conf.setDefaults()
			return "", nil
		}
	}

	byts, err := os.ReadFile(fpath)
	if err != nil {
		return "", err
	}

	err = yamlwrapper.Unmarshal(byts, conf)
	if err != nil {
		return "", err
	}

	return fpath, nil
}

// Clone clones the configuration.
func (conf Conf) Clone() *Conf {
	enc, err := json.Marshal(conf)
	if err != nil {
		panic(err)
	}

	var dest Conf
	err = json.Unmarshal(enc, &dest)
	if err != nil {
		panic(err)
	}

	return &dest
}

// Validate checks the configuration for errors.
func (conf *Conf) Validate() error {
	// General

	if slices.Contains(conf.LogDestinations, logger.DestinationFile) && conf.LogFile == "" {
		return fmt.Errorf("'logFile' must be set when logging to a file")
	}
	if conf.ReadTimeout <= 0 {
		return fmt.Errorf("'readTimeout' must be greater than zero")
	}

	// Correlation

	if conf.CorrelationMaxEntries <= 0 {
		return fmt.Errorf("'correlationMaxEntries' must be greater than zero")
	}
	if conf.CorrelationMaxAge < 0 {
		return fmt.Errorf("'correlationMaxAge' must not be negative")
	}
	if conf.CorrelationShards <= 0 {
		return fmt.Errorf("'correlationShards' must be greater than zero")
	}
	if conf.CorrelationShards > conf.CorrelationMaxEntries {
		return fmt.Errorf("'correlationShards' must not exceed 'correlationMaxEntries'")
	}
	if conf.ImageTimestampDivisor <= 0 {
		return fmt.Errorf("'imageTimestampDivisor' must be greater than zero")
	}

	// Simulator

	if conf.SimFrameRate <= 0 {
		return fmt.Errorf("'simFrameRate' must be greater than zero")
	}
	if conf.SimRefreshRate <= 0 {
		return fmt.Errorf("'simRefreshRate' must be greater than zero")
	}
	if conf.SimDropRatio < 0 || conf.SimDropRatio >= 1 {
		return fmt.Errorf("'simDropRatio' must be between 0 and 1")
	}
	if conf.SimMetadataDelay < 0 {
		return fmt.Errorf("'simMetadataDelay' must not be negative")
	}
	if conf.SimDuration < 0 {
		return fmt.Errorf("'simDuration' must not be negative")
	}

	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (conf *Conf) UnmarshalJSON(b []byte) error {
	conf.setDefaults()

	type alias Conf
	d := json.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()
	return d.Decode((*alias)(conf))
}
