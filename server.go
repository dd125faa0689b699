package kvapi

import (
	"github.com/zachmann/go-utils/duration"
)

// ServerConf configures the http server
type ServerConf struct {
	IPListen          string   `yaml:"ip_listen"`
	Port              int      `yaml:"port"`
	TLS               tlsConf  `yaml:"tls"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
	ForwardedIPHeader string   `yaml:"forwarded_ip_header"`
	// ExternalURL is the url the api is reachable at; it is advertised in
	// the served OpenAPI document
	ExternalURL string `yaml:"external_url"`
	// BodyLimit is the maximum request body size in bytes
	BodyLimit int `yaml:"body_limit"`
	// ReadTimeout and WriteTimeout bound transferring a request and a
	// response; zero derives them from the body limit
	ReadTimeout  duration.DurationOption `yaml:"read_timeout"`
	WriteTimeout duration.DurationOption `yaml:"write_timeout"`
	// BatchTimeout bounds the execution of a batch; zero uses the write
	// timeout
	BatchTimeout duration.DurationOption `yaml:"batch_timeout"`
}

type tlsConf struct {
	Enabled      bool   `yaml:"enabled"`
	RedirectHTTP bool   `yaml:"redirect_http"`
	Cert         string `yaml:"cert"`
	Key          string `yaml:"key"`
}
