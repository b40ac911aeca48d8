package auth

import (
	"regexp"
)

const (
	identityFieldSuffix = "_id"
	dataFieldSuffix     = "_data"
)

// provider names double as column prefixes, so they are restricted to
// lowercase identifiers without separators.
var providerNamePattern = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// ProviderFields are the namespaced User columns a provider reads and writes
type ProviderFields struct {
	Provider      string `json:"provider"`
	IdentityField string `json:"identity_field"`
	DataField     string `json:"data_field"`
}

// ResolveFieldNames maps a provider name to its identity and data columns.
// The mapping is deterministic and injective: the suffixes are fixed and
// names can not contain the "_" separator.
func ResolveFieldNames(providerName string) (ProviderFields, error) {
	if !providerNamePattern.MatchString(providerName) {
		return ProviderFields{}, withSource(ErrInvalidProviderName, nil, map[string]any{
			"provider": providerName,
		})
	}

	return ProviderFields{
		Provider:      providerName,
		IdentityField: providerName + identityFieldSuffix,
		DataField:     providerName + dataFieldSuffix,
	}, nil
}

// MustResolveFieldNames is like ResolveFieldNames but panics on invalid names
func MustResolveFieldNames(providerName string) ProviderFields {
	fields, err := ResolveFieldNames(providerName)
	if err != nil {
		panic(err)
	}
	return fields
}
