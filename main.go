package main

import (
	"flag"
	"os"
	"strings"

	"github.com/ptgott/mailutil/email"
	"github.com/ptgott/mailutil/userconfig"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// stringList collects the values of a flag that can be repeated
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	// Log with filename and line number. This writes to stderr, so it should
	// be thread safe.
	// https://github.com/rs/zerolog/blob/7ccd4c940bf8a02fcc5f10e5475f9d3daff04d57/log/log.go#L13
	log.Logger = log.With().Caller().Logger()

	os.Exit(run(os.Args[1:]))
}

// run is main without the exit, returning the process's exit code
func run(args []string) int {
	fs := flag.NewFlagSet("mailutil", flag.ContinueOnError)

	var cc, attachments stringList
	configPath := fs.String(
		"config",
		"./config.yaml",
		"path to a JSON or YAML file containing your configuration",
	)
	to := fs.String("to", "", "address of the recipient")
	fs.Var(&cc, "cc", "address to CC (repeatable)")
	fs.Var(&attachments, "attach", "path of a file to attach (repeatable)")
	subject := fs.String("subject", "", "subject line of the email")
	body := fs.String("body", "", "plain text body of the email")
	bodyFile := fs.String(
		"body-file",
		"",
		"path to a file containing the plain text body (overrides -body)",
	)
	validateOnly := fs.Bool(
		"validate",
		false,
		"only check the -to and -cc addresses, then exit",
	)
	level := fs.String(
		"level",
		"info",
		`log level: "info", "debug", or "warn"`,
	)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	switch *level {
	case "debug":
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	case "warn":
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	default:
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	addrs := append([]string{*to}, cc...)
	if bad := email.InvalidAddresses(addrs...); len(bad) > 0 {
		log.Error().
			Strs("addresses", bad).
			Msg("these are not valid email addresses")
		return 1
	}

	if *validateOnly {
		log.Info().
			Strs("addresses", addrs).
			Msg("all addresses are valid")
		return 0
	}

	log.Info().
		Str("configPath", *configPath).
		Msg("starting the application")

	f, err := os.Open(*configPath)
	if err != nil {
		log.Error().
			Str("config-path", *configPath).
			Err(err).
			Msg("We can't open the application config file")
		return 1
	}
	defer f.Close()

	config, err := userconfig.Parse(f)
	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem parsing your config")
		return 1
	}

	checkedConfig, err := config.CheckAndSetDefaults()
	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem validating your config")
		return 1
	}

	log.Info().Str("configPath", *configPath).Msg("successfully validated the config")

	text := *body
	if *bodyFile != "" {
		b, err := os.ReadFile(*bodyFile)
		if err != nil {
			log.Error().
				Str("body-file", *bodyFile).
				Err(err).
				Msg("can't read the email body")
			return 1
		}
		text = string(b)
	}

	c, err := email.Dial(checkedConfig.EmailSettings)
	if err != nil {
		log.Error().
			Err(err).
			Msg("can't open an SMTP session")
		return 1
	}
	defer func() {
		if err := c.Quit(); err != nil {
			log.Warn().Err(err).Msg("can't end the SMTP session cleanly")
			c.Close()
		}
	}()

	ok := email.SendEmail(
		checkedConfig.EmailSettings.FromAddress,
		*to,
		cc,
		attachments,
		*subject,
		text,
		&email.ClientTransport{Client: c},
		checkedConfig.Log.Path,
	)

	if !ok {
		log.Error().
			Str("recipient", *to).
			Str("logFile", checkedConfig.Log.Path).
			Msgf("the email was not sent; see %v for details", checkedConfig.Log.Path)
		return 1
	}

	log.Info().
		Str("recipient", *to).
		Int("cc", len(cc)).
		Int("attachments", len(attachments)).
		Msg("sent the email")
	return 0
}
