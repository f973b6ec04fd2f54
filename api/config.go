package api

import (
	"errors"
	"time"

	"github.com/fy0/filterable"
	"github.com/fy0/filterable/filter"
)

type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	Transport filterable.Transport
	Level     filter.Level
	// Alias is the root alias of entity queries.
	Alias      string
	PerPage    int
	MaxPerPage int

	// RoleHeader lists the comma separated roles of the caller. DefaultRoles
	// apply when it is absent.
	RoleHeader   string
	DefaultRoles []string
	// UserHeader is exposed to row scopes as the "user_id" variable.
	UserHeader string
}

func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("api server address is required"))
	}
	if c.PerPage <= 0 || c.MaxPerPage < c.PerPage {
		errs = append(errs, errors.New("invalid page sizes"))
	}
	if c.Alias == "" {
		errs = append(errs, errors.New("root alias is required"))
	}
	return errors.Join(errs...)
}
