package domain

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

// EngineType identifies the database engine a descriptor targets.
// Values match the engine strings accepted at the boundary.
type EngineType string

const (
	EnginePostgreSQL EngineType = "PostgreSQL"
	EngineMySQL      EngineType = "MySQL"
	EngineMariaDB    EngineType = "MariaDB"
	EngineMongoDB    EngineType = "MongoDB"
	EngineOracle     EngineType = "Oracle"
)

// EngineFamily groups engines that share an adapter implementation
type EngineFamily string

const (
	FamilyRelational EngineFamily = "relational"
	FamilyDocument   EngineFamily = "document"
	FamilyUnknown    EngineFamily = "unknown"
)

var engineAliases = map[string]EngineType{
	"postgresql": EnginePostgreSQL,
	"postgres":   EnginePostgreSQL,
	"pg":         EnginePostgreSQL,
	"mysql":      EngineMySQL,
	"mariadb":    EngineMariaDB,
	"mongodb":    EngineMongoDB,
	"mongo":      EngineMongoDB,
	"oracle":     EngineOracle,
}

// ParseEngineType maps a boundary string onto an EngineType. Matching is
// case-insensitive. Unknown values are kept verbatim so the gateway can
// reject them with UnsupportedEngine instead of failing here.
func ParseEngineType(s string) EngineType {
	trimmed := strings.TrimSpace(s)
	if engine, ok := engineAliases[strings.ToLower(trimmed)]; ok {
		return engine
	}
	return EngineType(trimmed)
}

// Family returns the adapter family of the engine
func (e EngineType) Family() EngineFamily {
	switch e {
	case EnginePostgreSQL, EngineMySQL, EngineMariaDB, EngineOracle:
		return FamilyRelational
	case EngineMongoDB:
		return FamilyDocument
	default:
		return FamilyUnknown
	}
}

// DefaultPort returns the well-known port of the engine, or 0 if unknown
func (e EngineType) DefaultPort() int {
	switch e {
	case EnginePostgreSQL:
		return 5432
	case EngineMySQL, EngineMariaDB:
		return 3306
	case EngineMongoDB:
		return 27017
	case EngineOracle:
		return 1521
	default:
		return 0
	}
}

func (e EngineType) String() string {
	return string(e)
}

// UnmarshalText applies ParseEngineType so JSON bodies accept the same aliases
func (e *EngineType) UnmarshalText(text []byte) error {
	*e = ParseEngineType(string(text))
	return nil
}

// ConnectionMode selects which field group of a descriptor is populated
type ConnectionMode string

const (
	ModeDiscreteFields ConnectionMode = "discrete"
	ModeConnectionURL  ConnectionMode = "url"
)

// DataSourceDescriptor holds the connection and dialect information for one
// target engine. The gateway only ever reads it.
type DataSourceDescriptor struct {
	Name     string            `json:"name,omitempty"`
	Engine   EngineType        `json:"type" validate:"required"`
	Mode     ConnectionMode    `json:"connection_mode,omitempty" validate:"required,oneof=discrete url"`
	Host     string            `json:"host,omitempty" validate:"required_if=Mode discrete,excluded_if=Mode url"`
	Port     int               `json:"port,omitempty" validate:"gte=0,lte=65535"`
	Username string            `json:"username,omitempty"`
	Password string            `json:"password,omitempty"`
	Database string            `json:"database,omitempty" validate:"required_if=Mode discrete"`
	URL      string            `json:"connection_string,omitempty" validate:"required_if=Mode url"`
	Options  map[string]string `json:"options,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// ResolvedMode returns the connection mode, inferring it when unset:
// a connection string selects URL mode, a host selects discrete mode.
func (d DataSourceDescriptor) ResolvedMode() ConnectionMode {
	if d.Mode != "" {
		return d.Mode
	}
	if d.URL != "" {
		return ModeConnectionURL
	}
	if d.Host != "" {
		return ModeDiscreteFields
	}
	return ""
}

// EffectivePort returns the configured port or the engine default
func (d DataSourceDescriptor) EffectivePort() int {
	if d.Port > 0 {
		return d.Port
	}
	return d.Engine.DefaultPort()
}

// Validate checks the field group selected by the connection mode.
// Failures are reported as InvalidDescriptor.
func (d DataSourceDescriptor) Validate() error {
	resolved := d
	resolved.Mode = d.ResolvedMode()
	if resolved.Mode == "" {
		return gwerrors.New(gwerrors.KindInvalidDescriptor, string(d.Engine),
			"descriptor has neither a connection string nor discrete connection fields", nil)
	}

	if err := validate.Struct(resolved); err != nil {
		var fieldErrs validator.ValidationErrors
		if ok := asValidationErrors(err, &fieldErrs); ok {
			return gwerrors.New(gwerrors.KindInvalidDescriptor, string(d.Engine), formatFieldErrors(fieldErrs), nil)
		}
		return gwerrors.New(gwerrors.KindInvalidDescriptor, string(d.Engine), "descriptor validation failed", err)
	}

	if resolved.Mode == ModeConnectionURL {
		if strings.TrimSpace(d.URL) == "" {
			return gwerrors.New(gwerrors.KindInvalidDescriptor, string(d.Engine), "connection_string is blank", nil)
		}
	} else if strings.TrimSpace(d.Host) == "" || strings.TrimSpace(d.Database) == "" {
		return gwerrors.New(gwerrors.KindInvalidDescriptor, string(d.Engine), "host and database must not be blank", nil)
	}
	return nil
}

// Redacted returns a copy that is safe to log: the password is masked and
// credentials embedded in the connection string are hidden.
func (d DataSourceDescriptor) Redacted() DataSourceDescriptor {
	out := d
	if out.Password != "" {
		out.Password = redactedMarker
	}
	if out.URL != "" {
		out.URL = RedactConnectionString(out.URL)
	}
	if len(d.Options) > 0 {
		out.Options = make(map[string]string, len(d.Options))
		for k, v := range d.Options {
			if isSecretOption(k) {
				v = redactedMarker
			}
			out.Options[k] = v
		}
	}
	return out
}

// Target renders host:port/database or the redacted connection string, for logs
func (d DataSourceDescriptor) Target() string {
	if d.ResolvedMode() == ModeConnectionURL {
		return RedactConnectionString(d.URL)
	}
	return fmt.Sprintf("%s:%d/%s", d.Host, d.EffectivePort(), d.Database)
}

const redactedMarker = "xxxxx"

// RedactConnectionString hides the password of a URL or a user:pass@ DSN
func RedactConnectionString(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.User != nil {
		return u.Redacted()
	}
	at := strings.LastIndex(raw, "@")
	if at < 0 {
		return raw
	}
	userInfo := raw[:at]
	if colon := strings.Index(userInfo, ":"); colon >= 0 {
		return userInfo[:colon+1] + redactedMarker + raw[at:]
	}
	return raw
}

func isSecretOption(key string) bool {
	lower := strings.ToLower(key)
	for _, needle := range []string{"password", "secret", "token", "key"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = fieldErrs
	}
	return ok
}

func formatFieldErrors(fieldErrs validator.ValidationErrors) string {
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required", "required_if":
			messages = append(messages, fmt.Sprintf("%s is required", fe.Field()))
		case "excluded_if":
			messages = append(messages, fmt.Sprintf("%s must be empty in url mode", fe.Field()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "gte", "lte":
			messages = append(messages, fmt.Sprintf("%s must be between 0 and 65535", fe.Field()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
		}
	}
	sort.Strings(messages)
	return strings.Join(messages, "; ")
}
