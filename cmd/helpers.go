// cmd/helpers.go
/*
Copyright © 2025 Campus IT <mis@campusit.tw>
*/
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/campusit/mfpusage/internal/config"
	"github.com/campusit/mfpusage/internal/directory"
	"github.com/campusit/mfpusage/internal/store"
)

// loadConfig reads the config file named by --config (or MFPUSAGE_CONFIG).
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error loading config %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
	Debug("loaded config from %s (%d printers)", cfgFile, len(cfg.Printers))
	return cfg
}

// openStore opens the usage database named in the config.
func openStore(cfg *config.Config) *store.Store {
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error opening database %s: %v\n", cfg.DatabasePath, err)
		os.Exit(1)
	}
	return st
}

// newDirectory builds the name lookup from the config. Without an LDAP
// section names pass through unchanged.
func newDirectory(cfg *config.Config) directory.Lookup {
	if cfg.LDAP == nil || cfg.LDAP.URL == "" {
		return directory.Nop{}
	}
	l := directory.NewLDAP(directory.LDAPConfig{
		URL:      cfg.LDAP.URL,
		BindDN:   cfg.LDAP.BindDN,
		BindPass: cfg.LDAP.BindPass,
		BaseDN:   cfg.LDAP.BaseDN,
	})
	return directory.NewCached(l, 15*time.Minute)
}

// resolvePrinters maps the --printer flag to config entries, exiting when
// nothing matches.
func resolvePrinters(cfg *config.Config, spec string) []config.Printer {
	printers := cfg.ResolvePrinters(spec)
	if len(printers) == 0 {
		fmt.Fprintf(os.Stderr, "❌ No printers match %q\n", spec)
		os.Exit(1)
	}
	return printers
}
