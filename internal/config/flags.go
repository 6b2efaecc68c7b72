package config

import (
	"github.com/spf13/pflag"
)

// flagValues are the raw, unvalidated strings pflag fills in; Resolve turns
// them into a Config, parsing durations with ParseHuman.
type flagValues struct {
	brokers        []string
	kafkaOptions   []string
	drawInterval   string
	scrapeInterval string
	scrapeTimeout  string
}

// Register adds ktop's flags to fs, returning a handle to read them back
// with Resolve after fs.Parse has run.
func Register(fs *pflag.FlagSet) *flagValues {
	fv := &flagValues{}
	fs.StringSliceVarP(&fv.brokers, "brokers", "b", nil, "comma-separated seed brokers (required)")
	fs.StringArrayVarP(&fv.kafkaOptions, "kafka-options", "X", nil, "librdkafka-style key=value client option, repeatable")
	fs.StringVarP(&fv.drawInterval, "draw-interval", "d", "15min", "width of the live chart window")
	fs.StringVarP(&fv.scrapeInterval, "scrape-interval", "s", "10s", "time between offset scrapes")
	fs.StringVarP(&fv.scrapeTimeout, "scrape-timeout", "T", "5s", "per-request timeout for metadata/offset RPCs")
	return fv
}

// Resolve validates and converts the raw flag strings into a Config.
func (fv *flagValues) Resolve() (Config, error) {
	draw, err := ParseHuman(fv.drawInterval)
	if err != nil {
		return Config{}, err
	}
	scrapeInterval, err := ParseHuman(fv.scrapeInterval)
	if err != nil {
		return Config{}, err
	}
	scrapeTimeout, err := ParseHuman(fv.scrapeTimeout)
	if err != nil {
		return Config{}, err
	}

	opts := make(map[string]string, len(fv.kafkaOptions))
	for _, raw := range fv.kafkaOptions {
		k, v, err := ParseKafkaOption(raw)
		if err != nil {
			return Config{}, err
		}
		opts[k] = v
	}

	cfg := Config{
		Brokers:        fv.brokers,
		KafkaOptions:   opts,
		DrawInterval:   draw,
		ScrapeInterval: scrapeInterval,
		ScrapeTimeout:  scrapeTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
