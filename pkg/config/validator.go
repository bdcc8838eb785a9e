package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// moduleNamePattern matches connected site module names such as
// "animebuff_ru": lowercase words joined by single underscores.
var moduleNamePattern = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

// newValidator reports fields by their koanf path, so errors name the key a
// user would put in watchdeck.yaml.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("module_name", validateModuleName); err != nil {
		panic(fmt.Sprintf("register validators: %v", err))
	}
	v.RegisterStructValidation(validateConfig, Config{})
	return v
}

func validateModuleName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if len(name) < 2 || len(name) > 64 {
		return false
	}
	return moduleNamePattern.MatchString(name)
}

// validateConfig holds the rules that span sections.
func validateConfig(sl validator.StructLevel) {
	cfg, ok := sl.Current().Interface().(Config)
	if !ok {
		return
	}
	if cfg.Dev.Store == "redis" && cfg.Dev.RedisAddr == "" {
		sl.ReportError(cfg.Dev.RedisAddr, "dev.redis_addr", "RedisAddr", "required_for_redis", "")
	}
	poll := max(cfg.Jobs.ParsePollInterval, cfg.Jobs.ExportPollInterval)
	if cfg.Server.Timeout < poll {
		sl.ReportError(cfg.Server.Timeout, "server.timeout", "Timeout", "min_poll_interval", poll.String())
	}
}

// describe turns validator errors into one line per offending key.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required_for_redis":
			msgs = append(msgs, fmt.Errorf("%s is required when dev.store is redis", key))
		case "min_poll_interval":
			msgs = append(msgs, fmt.Errorf("%s must not be shorter than a poll interval (%s)", key, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Errorf("%s must be one of [%s], got %v", key, fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Errorf("%s failed the %q rule (value %v)", key, fe.Tag(), fe.Value()))
		}
	}
	return errors.Join(msgs...)
}
