package parasut

import (
	"fmt"
	"strings"
)

type Environment int

const (
	Prod Environment = iota
	Sandbox
)

func (e Environment) Valid() bool {
	return e == Prod || e == Sandbox
}

func (e Environment) BaseURL() string {
	switch e {
	case Prod:
		return "https://api.parasut.com"
	case Sandbox:
		return "https://api.heroku-staging.parasut.com"
	}
	panic("Invalid environment")
}

func (e Environment) Name() string {
	switch e {
	case Prod:
		return "prod"
	case Sandbox:
		return "sandbox"
	}
	panic("Invalid environment")
}

func (e *Environment) UnmarshalText(text []byte) error {
	val := strings.ToLower(strings.TrimSpace(string(text)))

	switch val {
	case "prod", "production", "":
		*e = Prod
	case "sandbox", "staging":
		*e = Sandbox
	default:
		return fmt.Errorf("invalid PARASUT_ENV: %q (allowed: prod, sandbox)", val)
	}
	return nil
}
