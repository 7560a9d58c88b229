package driver

import (
	"net/url"
	"os"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/rusenback/perfverse/internal/config"
)

// Environment variables read by the traffic driver.
const (
	EnvConfigPath = "DRIVER_CONFIG_PATH"
	EnvConfig     = "DRIVER_CONFIG"
)

// DefaultProfile is used when DRIVER_CONFIG is not set.
const DefaultProfile = "default"

// Request is one HTTP call replayed on every iteration.
type Request struct {
	Method  string            `yaml:"method" default:"GET"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
}

// Profile is a named traffic configuration.
type Profile struct {
	Name string `yaml:"-"`

	// Host is prepended to request URLs that are not absolute.
	Host string `yaml:"host"`
	// Users is the number of simulated users running the request list.
	Users int `yaml:"users" default:"1"`
	// Rate iterations are allowed per Per for each user.
	Rate int           `yaml:"rate" default:"1"`
	Per  time.Duration `yaml:"per" default:"1s"`
	// Duration stops the run after the given time; zero runs until the
	// process is told to stop.
	Duration time.Duration `yaml:"duration"`
	Timeout  time.Duration `yaml:"timeout" default:"10s"`

	Requests []Request `yaml:"requests"`
}

// LoadProfile reads the named profile from the YAML file at path. An empty
// name selects DefaultProfile.
func LoadProfile(path, name string) (Profile, error) {
	if path == "" {
		return Profile{}, config.NewError(EnvConfigPath, "is not set")
	}
	if name == "" {
		name = DefaultProfile
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, errors.WrapWithDetails(err, "driver: failed to read configuration", "path", path)
	}
	return ParseProfile(b, name)
}

// ParseProfile decodes a YAML document of named profiles and returns the
// requested one with defaults applied.
func ParseProfile(b []byte, name string) (Profile, error) {
	var profiles map[string]Profile
	if err := yaml.Unmarshal(b, &profiles); err != nil {
		return Profile{}, errors.Wrap(err, "driver: failed to parse configuration")
	}

	p, ok := profiles[name]
	if !ok {
		return Profile{}, config.NewError(EnvConfig, "names unknown profile \""+name+"\"")
	}
	p.Name = name

	if err := defaults.Set(&p); err != nil {
		return Profile{}, errors.Wrap(err, "driver: failed to apply defaults")
	}
	for i := range p.Requests {
		if err := defaults.Set(&p.Requests[i]); err != nil {
			return Profile{}, errors.Wrap(err, "driver: failed to apply defaults")
		}
		p.Requests[i].Method = strings.ToUpper(p.Requests[i].Method)
	}

	return p, p.Validate()
}

// Validate reports configuration errors in the profile.
func (p Profile) Validate() error {
	switch {
	case len(p.Requests) == 0:
		return config.NewError(p.Name, "has no requests")
	case p.Users < 1:
		return config.NewError(p.Name, "needs at least one user")
	case p.Rate < 1 || p.Per <= 0 || p.Interval() <= 0:
		return config.NewError(p.Name, "has no usable rate")
	}
	for _, r := range p.Requests {
		if _, err := p.resolve(r.URL); err != nil {
			return config.NewError(p.Name, "has an invalid url "+r.URL)
		}
	}
	return nil
}

// Interval is the minimum time between two iterations of one user.
func (p Profile) Interval() time.Duration {
	return p.Per / time.Duration(p.Rate)
}

// resolve turns a request URL into an absolute one using Host.
func (p Profile) resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if p.Host == "" {
		return "", errors.New("driver: relative url without host")
	}
	base, err := url.Parse(p.Host)
	if err != nil || !base.IsAbs() {
		return "", errors.New("driver: host is not an absolute url")
	}
	return strings.TrimRight(base.String(), "/") + "/" + strings.TrimLeft(u.String(), "/"), nil
}
