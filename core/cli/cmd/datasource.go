package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/infrastructure/di"
	"github.com/hyperterse/querygate/core/logger"
	"github.com/hyperterse/querygate/core/parser"
)

// adHocFlags describe a data source on the command line instead of by name
type adHocFlags struct {
	engine   string
	mode     string
	host     string
	port     int
	username string
	password string
	database string
	url      string
}

func (f *adHocFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.engine, "type", "t", "", "Engine of an ad-hoc data source (postgres, mysql, mariadb, mongodb)")
	flags.StringVar(&f.mode, "mode", "", "Connection mode: discrete or url (inferred when omitted)")
	flags.StringVar(&f.host, "host", "", "Host of an ad-hoc data source")
	flags.IntVar(&f.port, "port", 0, "Port of an ad-hoc data source (engine default when omitted)")
	flags.StringVarP(&f.username, "user", "u", "", "Username of an ad-hoc data source")
	flags.StringVar(&f.password, "password", "", "Password of an ad-hoc data source")
	flags.StringVarP(&f.database, "database", "d", "", "Database of an ad-hoc data source")
	flags.StringVar(&f.url, "url", "", "Connection string of an ad-hoc data source")
}

func (f *adHocFlags) set() bool {
	return f.engine != "" || f.url != "" || f.host != ""
}

func (f *adHocFlags) descriptor() domain.DataSourceDescriptor {
	return domain.DataSourceDescriptor{
		Engine:   domain.ParseEngineType(f.engine),
		Mode:     domain.ConnectionMode(f.mode),
		Host:     f.host,
		Port:     f.port,
		Username: f.username,
		Password: f.password,
		Database: f.database,
		URL:      f.url,
	}
}

// target picks the catalog entry named by args or the ad-hoc descriptor.
// Exactly one of the two must be given.
func (f *adHocFlags) target(c *di.Container, args []string) (domain.DataSourceDescriptor, error) {
	switch {
	case len(args) > 0 && f.set():
		return domain.DataSourceDescriptor{}, fmt.Errorf("give either a data source name or ad-hoc flags, not both")
	case len(args) > 0:
		return c.QueryService.Lookup(args[0])
	case f.set():
		return f.descriptor(), nil
	default:
		return domain.DataSourceDescriptor{}, fmt.Errorf("a data source name or --type/--url is required")
	}
}

// newContainer loads the configuration and wires the gateway for one-shot commands
func newContainer(tag string) (*di.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	// one-shot commands never serve HTTP, so skip the limiter
	cfg.Server.RateLimit = parser.RateLimitConfig{}
	c, err := di.NewContainer(cfg)
	if err != nil {
		return nil, logger.WithTag(tag, err)
	}
	return c, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func formatMS(ms float64) string {
	return strconv.FormatFloat(ms, 'f', 1, 64) + "ms"
}
