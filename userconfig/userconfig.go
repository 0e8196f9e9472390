package userconfig

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ptgott/mailutil/email"
	"github.com/rs/zerolog/log"

	yaml "gopkg.in/yaml.v2"
)

// PasswordEnvVar overrides the SMTP password from the config file when it's
// set, so the password doesn't have to live on disk.
const PasswordEnvVar string = "MAILUTIL_SMTP_PASSWORD"

const defaultLogPath string = "./log.csv"

// Meta represents all current config options that the application can use,
// i.e., after validation and parsing
type Meta struct {
	EmailSettings email.UserConfig `yaml:"email"`
	Log           Log              `yaml:"log"`
}

// Log contains config options for the send outcome log
type Log struct {
	// File that gets one line appended per send attempt
	Path string `yaml:"path"`
}

// CheckAndSetDefaults validates l and either returns a copy of l with default
// settings applied or returns an error due to an invalid configuration
func (l *Log) CheckAndSetDefaults() (Log, error) {
	if l.Path == "" {
		l.Path = defaultLogPath
	}

	// The file itself is created on the first append, but its directory
	// has to be there already.
	d := filepath.Dir(l.Path)
	fi, err := os.Stat(d)
	if err != nil {
		return Log{}, fmt.Errorf("can't use the log directory %v: %v", d, err)
	}
	if !fi.IsDir() {
		return Log{}, fmt.Errorf("the log path's parent %v is not a directory", d)
	}

	return *l, nil
}

// CheckAndSetDefaults validates m and either returns a copy of m with default
// settings applied or returns an error due to an invalid configuration
func (m *Meta) CheckAndSetDefaults() (Meta, error) {
	c := Meta{}

	if pw := os.Getenv(PasswordEnvVar); pw != "" {
		log.Debug().
			Str("envVar", PasswordEnvVar).
			Msg("using the SMTP password from the environment")
		m.EmailSettings.Password = pw
	}

	e, err := m.EmailSettings.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	c.EmailSettings = e

	l, err := m.Log.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	c.Log = l

	return c, nil
}

// Parse generates usable configurations from possibly arbitrary user input.
// An error indicates a problem with parsing. The Reader r can be either JSON
// or YAML.
func Parse(r io.Reader) (*Meta, error) {
	var m Meta
	err := yaml.NewDecoder(r).Decode(&m)
	if err != nil {
		return &Meta{}, fmt.Errorf("can't read the config file as YAML: %v", err)
	}

	var es email.UserConfig = email.UserConfig{}
	if m.EmailSettings == es {
		return &Meta{}, errors.New("must include an \"email\" section")
	}

	return &m, nil
}
