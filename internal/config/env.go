// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "strings"

// envTransform builds a koanf env.Provider transform function that strips
// prefix and lowercases the remainder (underscores are kept), e.g. with prefix
// "ZHMC_INVENTORY_", "ZHMC_INVENTORY_GROUPS_PROD_HOSTS" becomes
// "groups_prod_hosts" -- adequate for the flat overrides this package
// actually needs (verify_cert toggles, single-host overrides), unlike the
// teacher's much larger legacy-name remapping table in koanf.go.
func envTransform(prefix string) func(string) string {
	return func(key string) string {
		trimmed := strings.TrimPrefix(key, prefix)
		return strings.ToLower(trimmed)
	}
}
