package config

import (
	"github.com/spf13/pflag"
)

// AddFlags binds command-line overrides for the most commonly changed
// settings. Flag defaults are the values already loaded from the
// environment, so an unset flag leaves the setting untouched.
func (c *Config) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.AgentURL, "agent-url", c.AgentURL, "agent websocket base url")
	flagSet.StringVar(&c.UserID, "user", c.UserID, "user id sent to the agent")
	flagSet.StringVar(&c.SessionID, "session", c.SessionID, "session id sent to the agent")
	flagSet.StringVar(&c.BindAddr, "bind", c.BindAddr, "operator API listen address")
	flagSet.BoolVar(&c.BindFallback, "bind-fallback", c.BindFallback, "try the next ports when the bind address is busy")
	flagSet.StringVar(&c.CDPAddress, "cdp-address", c.CDPAddress, "browser remote debugging host")
	flagSet.IntVar(&c.CDPPort, "cdp-port", c.CDPPort, "browser remote debugging port")
	flagSet.BoolVar(&c.LaunchBrowser, "launch-browser", c.LaunchBrowser, "start a browser when none is listening on the CDP port")
	flagSet.StringVar(&c.SurfacesFile, "surfaces", c.SurfacesFile, "YAML file of surfaces to open at startup")
	flagSet.StringVar(&c.MicPath, "mic", c.MicPath, "read microphone PCM from this file or pipe instead of the operator socket")
	flagSet.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
}
