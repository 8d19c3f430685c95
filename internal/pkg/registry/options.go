package registry

import (
	"time"

	"github.com/spf13/pflag"
)

const (
	DefaultParallelLayers = 8
	DefaultRequestTimeout = 2 * time.Minute
)

// Options tune the registry clients. The zero value is usable.
type Options struct {
	// AuthFile overrides the default credentials lookup.
	AuthFile  string
	TLSVerify bool
	// RequestTimeout bounds every HTTP call.
	RequestTimeout time.Duration
	// ParallelLayers bounds in-flight blob requests.
	ParallelLayers uint
	RetryTimes     uint
	RetryDelay     time.Duration
	// IsTerminal enables download spinners.
	IsTerminal bool
}

func (o Options) timeout() time.Duration {
	if o.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return o.RequestTimeout
}

func (o Options) parallel() int {
	if o.ParallelLayers == 0 {
		return DefaultParallelLayers
	}
	return int(o.ParallelLayers)
}

// Flags binds the registry options to command line flags.
func Flags() (pflag.FlagSet, *Options) {
	opts := Options{}
	fs := pflag.FlagSet{}
	fs.StringVar(&opts.AuthFile, "authfile", "", "Path of the registry credentials file. Default is the containers auth lookup order")
	fs.BoolVar(&opts.TLSVerify, "tls-verify", true, "Require HTTPS and verify certificates when talking to registries")
	fs.UintVar(&opts.ParallelLayers, "parallel-layers", DefaultParallelLayers, "Indicates the number of catalog layers fetched in parallel")
	fs.DurationVar(&opts.RequestTimeout, "request-timeout", DefaultRequestTimeout, "Timeout of a single registry request")
	return fs, &opts
}

// RetryFlags binds the retry settings of opts to command line flags.
func RetryFlags(opts *Options) pflag.FlagSet {
	fs := pflag.FlagSet{}
	fs.UintVar(&opts.RetryTimes, "retry-times", 0, "the number of times to possibly retry")
	fs.DurationVar(&opts.RetryDelay, "retry-delay", time.Second, "delay between 2 retries")
	return fs
}
