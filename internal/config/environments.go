package config

import (
	"fmt"
	"sort"
)

// Environment holds the endpoints for one QuickBooks Online environment.
type Environment struct {
	APIBase   string
	AppCenter string
}

// Environments maps environment names to their endpoints. OAuth endpoints are
// shared; only the accounting API host differs.
var Environments = map[string]Environment{
	"sandbox": {
		APIBase:   "https://sandbox-quickbooks.api.intuit.com",
		AppCenter: "https://appcenter.intuit.com",
	},
	"production": {
		APIBase:   "https://quickbooks.api.intuit.com",
		AppCenter: "https://appcenter.intuit.com",
	},
}

// DefaultEnvironment is used when qbo_environment is unset.
const DefaultEnvironment = "sandbox"

// GetEnvironment returns the endpoints for the named environment
func GetEnvironment(name string) (Environment, error) {
	env, ok := Environments[name]
	if !ok {
		return Environment{}, fmt.Errorf("unknown QuickBooks environment: %s", name)
	}
	return env, nil
}

// ValidEnvironments returns a sorted list of environment names
func ValidEnvironments() []string {
	names := make([]string, 0, len(Environments))
	for name := range Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
