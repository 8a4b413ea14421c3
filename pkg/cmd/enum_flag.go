package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

// EnumValue is a cli.Generic flag type that enforces flag values from an enum.
type EnumValue struct {
	Allowed []string
	Default string
	v       string
}

var _ cli.Generic = (*EnumValue)(nil)

func (e *EnumValue) Set(value string) error {
	for _, a := range e.Allowed {
		if strings.EqualFold(a, value) {
			e.v = a
			return nil
		}
	}
	return fmt.Errorf("allowed values are %s; got: %s", strings.Join(e.Allowed, ", "), value)
}

func (e *EnumValue) String() string {
	if e.v == "" {
		return e.Default
	}
	return e.v
}

// enumFlag returns the value of the EnumValue flag name.
func enumFlag(c *cli.Context, name string) string {
	if e, ok := c.Generic(name).(*EnumValue); ok {
		return e.String()
	}
	return ""
}
