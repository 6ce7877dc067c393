// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config parses cmd/rift's CLI surface (§6.3) and layers the
// environment variables named in §6.4 over unset flags. It mirrors the
// teacher's flag-parsing shape (cmd/ratelimiter-api/main.go: plain
// flag.Int64/flag.String calls read into a config struct) but parses
// into its own *flag.FlagSet rather than the package-global flag.CommandLine,
// so a malformed flag produces a returned error (-> exit code 2) instead of
// calling os.Exit from inside a library.
package config

import (
	"flag"
	"strconv"
	"strings"
)

// Config is the fully resolved process configuration: CLI flags with
// environment-variable fallbacks already applied.
type Config struct {
	AdminPort      int
	Host           string
	LogLevel       string
	LogPath        string
	AllowInjection bool
	IPWhitelist    []string
	ConfigFile     string
	MetricsPort    int
	RustLog        string
}

// Env abstracts environment lookup so tests don't touch process-global
// state; os.LookupEnv satisfies it directly.
type Env func(key string) (string, bool)

// Parse parses args (excluding the program name, as in flag.FlagSet.Parse)
// per §6.3, then layers §6.4's environment variables over any flag the
// caller did not explicitly set.
func Parse(args []string, getenv Env) (*Config, error) {
	fs := flag.NewFlagSet("rift", flag.ContinueOnError)

	port := fs.Int("port", 2525, "admin HTTP port")
	host := fs.String("host", "0.0.0.0", "bind host for admin and imposter listeners")
	logLevel := fs.String("loglevel", "", "log level: debug, info, warn, or error")
	logPath := fs.String("log", "", "redirect structured logs to this file instead of stderr")
	allowInjection := fs.Bool("allow-injection", false, "permit _rift.script/shellTransform bodies to run")
	ipWhitelist := fs.String("ip-whitelist", "", "comma-separated list of IPs allowed to reach the admin API")
	configFile := fs.String("configfile", "", "load imposters from this file at startup")
	metricsPort := fs.Int("metrics-port", 0, "port to expose Prometheus /metrics on; 0 disables it")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	cfg := &Config{
		AdminPort:      *port,
		Host:           *host,
		LogLevel:       *logLevel,
		LogPath:        *logPath,
		AllowInjection: *allowInjection,
		IPWhitelist:    splitCSV(*ipWhitelist),
		ConfigFile:     *configFile,
		MetricsPort:    *metricsPort,
	}

	applyEnv(cfg, explicit, getenv)
	return cfg, nil
}

func applyEnv(cfg *Config, explicit map[string]bool, getenv Env) {
	if !explicit["port"] {
		if v, ok := getenv("MB_PORT"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				cfg.AdminPort = n
			}
		}
	}
	if !explicit["allow-injection"] {
		if v, ok := getenv("MB_ALLOW_INJECTION"); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				cfg.AllowInjection = b
			}
		}
	}
	if !explicit["metrics-port"] {
		if v, ok := getenv("RIFT_METRICS_PORT"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				cfg.MetricsPort = n
			}
		}
	}
	if v, ok := getenv("RUST_LOG"); ok {
		cfg.RustLog = v
	}
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
