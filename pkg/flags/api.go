package flags

import (
	"github.com/spf13/pflag"
)

// APIFlags holds the config for the HTTP listeners.
type APIFlags struct {
	ListenAddr        string
	MetricsListenAddr string
}

func NewAPIFlags() *APIFlags {
	return &APIFlags{
		ListenAddr:        ":8080",
		MetricsListenAddr: ":2112",
	}
}

func (f *APIFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.ListenAddr, "listen", f.ListenAddr, "The address to serve the chat API on (default :8080)")
	fs.StringVar(&f.MetricsListenAddr, "listen-metrics", f.MetricsListenAddr, "The address to serve prometheus metrics on (default :2112)")
}
