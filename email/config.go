package email

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
)

const (
	smtpScheme  string = "smtp"
	smtpsScheme string = "smtps"
)

var schemePattern = regexp.MustCompile("^[a-zA-Z][a-zA-Z0-9+.-]*://")

// UserConfig represents config options provided by the user for opening an
// SMTP session. Not meant to be used directly for dialing without
// CheckAndSetDefaults.
type UserConfig struct {
	SMTPServerHost string
	SMTPServerPort string
	UserName       string
	Password       string
	FromAddress    string
	// Accept self-signed or otherwise unverifiable certificates. Only
	// useful for testing against a local relay.
	SkipCertVerification bool
	// Connect with TLS from the start instead of upgrading via STARTTLS.
	// Set automatically for smtps:// addresses.
	ImplicitTLS bool
}

// UnmarshalYAML parses a user-provided YAML configuration, returning any
// parsing or validation errors.
func (uc *UserConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the email config: %v", err)
	}

	ra, ok := v["smtpServerAddress"]
	if !ok || ra == "" {
		return errors.New("the email config must include an SMTP server address")
	}

	// Don't require the user to include a scheme. If we can't
	// find one, use one for SMTP.
	if !schemePattern.MatchString(ra) {
		ra = fmt.Sprintf("%v://%v", smtpScheme, ra)
	}

	u, err := url.Parse(ra)
	if err != nil {
		return fmt.Errorf("can't parse the SMTP server address: %v", err)
	}

	switch u.Scheme {
	case smtpScheme:
	case smtpsScheme:
		uc.ImplicitTLS = true
	default:
		return fmt.Errorf("unsupported scheme for the SMTP server address: %v", u.Scheme)
	}

	if u.Port() == "" {
		return errors.New("the SMTP server address must include a port")
	}
	if _, err := strconv.Atoi(u.Port()); err != nil {
		return fmt.Errorf("the SMTP server port must be a number: %v", err)
	}

	uc.SMTPServerHost = u.Hostname()
	uc.SMTPServerPort = u.Port()
	uc.UserName = v["username"]
	uc.Password = v["password"]
	uc.FromAddress = v["fromAddress"]

	// The password may come from somewhere other than the config file, so
	// it's checked in CheckAndSetDefaults instead
	if uc.UserName == "" {
		return errors.New("must supply a username")
	}

	if uc.FromAddress == "" {
		return errors.New("must supply a \"from\" address")
	}

	uc.SkipCertVerification, err = optionalBool(v, "skipCertVerification")
	if err != nil {
		return err
	}

	itls, err := optionalBool(v, "implicitTLS")
	if err != nil {
		return err
	}
	uc.ImplicitTLS = uc.ImplicitTLS || itls

	return nil
}

// CheckAndSetDefaults validates uc and either returns a copy of uc with
// default settings applied or returns an error due to an invalid
// configuration
func (uc *UserConfig) CheckAndSetDefaults() (UserConfig, error) {
	if uc.SMTPServerHost == "" {
		return UserConfig{}, errors.New("must supply an SMTP server host")
	}
	if uc.SMTPServerPort == "" {
		return UserConfig{}, errors.New("must supply an SMTP server port")
	}
	if uc.UserName == "" || uc.Password == "" {
		return UserConfig{}, errors.New("must supply a username and password")
	}
	if !IsValidAddress(uc.FromAddress) {
		return UserConfig{}, fmt.Errorf("the \"from\" address is not a valid email address: %q", uc.FromAddress)
	}
	return *uc, nil
}

// Address returns the host:port of the SMTP relay.
func (uc UserConfig) Address() string {
	return uc.SMTPServerHost + ":" + uc.SMTPServerPort
}

// optionalBool parses v[key] as a boolean, defaulting to false when the key
// is absent
func optionalBool(v map[string]string, key string) (bool, error) {
	s, ok := v[key]
	if !ok {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("can't parse %v as a boolean: %v", key, err)
	}
	return b, nil
}
