package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment-variable overrides (spec.md §6
// "Environment: optional environment-variable overrides for any config key").
const envPrefix = "HL7PROXY"

// candidatePaths returns the standard locations searched for a config file
// when none is given explicitly, grounded on the search-path convention in
// Sentinel-Gate-Sentinelgate/internal/config/loader.go.
func candidatePaths() []string {
	home, _ := os.UserHomeDir()
	paths := []string{"hl7proxy.json"}
	if home != "" {
		paths = append(paths, filepath.Join(home, ".hl7proxy", "config.json"))
	}
	paths = append(paths, filepath.Join("/etc", "hl7proxy", "config.json"))
	return paths
}

func findConfigFile() string {
	for _, p := range candidatePaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// bindEnvKeys binds every Hl7.* key explicitly so nested viper defaults
// don't defeat AutomaticEnv, the same reasoning documented in
// Sentinel-Gate-Sentinelgate/internal/config/loader.go's bindNestedEnvKeys.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"Hl7.Port", "Hl7.ClientHost", "Hl7.ClientPort",
		"Hl7.SendingApplication", "Hl7.SendingFacility",
		"Hl7.ReceivingApplication", "Hl7.ReceivingFacility",
		"Hl7.LogFilePath", "Hl7.AllowedEvents",
		"Hl7.AckMode", "Hl7.MessageDateTimeFormat",
		"Hl7.DisconnectAfterAck", "Hl7.IsServer",
		"Hl7.Mode", "Hl7.ProxyDirection",
		"Hl7.AdminAddr", "Hl7.MaxQueueDepth",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func setDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("Hl7.Port", d.Port)
	v.SetDefault("Hl7.ClientHost", d.ClientHost)
	v.SetDefault("Hl7.ClientPort", d.ClientPort)
	v.SetDefault("Hl7.SendingApplication", d.SendingApplication)
	v.SetDefault("Hl7.SendingFacility", d.SendingFacility)
	v.SetDefault("Hl7.ReceivingApplication", d.ReceivingApplication)
	v.SetDefault("Hl7.ReceivingFacility", d.ReceivingFacility)
	v.SetDefault("Hl7.LogFilePath", d.LogFilePath)
	v.SetDefault("Hl7.AllowedEvents", d.AllowedEvents)
	v.SetDefault("Hl7.AckMode", d.AckMode)
	v.SetDefault("Hl7.MessageDateTimeFormat", d.MessageDateTimeFormat)
	v.SetDefault("Hl7.DisconnectAfterAck", d.DisconnectAfterAck)
	v.SetDefault("Hl7.IsServer", d.IsServer)
	v.SetDefault("Hl7.Mode", string(d.Mode))
	v.SetDefault("Hl7.ProxyDirection", string(d.ProxyDirection))
	v.SetDefault("Hl7.AdminAddr", d.AdminAddr)
	v.SetDefault("Hl7.MaxQueueDepth", d.MaxQueueDepth)
}

// Load reads the Hl7 JSON document from path (or the first standard search
// location that exists when path is empty), applies environment overrides,
// and returns the resulting Settings. When path is empty and no file is
// found, defaults plus any environment overrides are used; an explicit path
// that cannot be read is an error.
func Load(path string) (Settings, error) {
	v := viper.New()
	v.SetConfigType("json")

	setDefaults(v, Defaults())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.UnmarshalKey("Hl7", &s); err != nil {
		return Settings{}, fmt.Errorf("config: decoding Hl7 settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	return s, nil
}
