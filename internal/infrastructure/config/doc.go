// Package config handles loading and validating the OSC bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with OSCBRIDGE_* environment variables
//   - Validation of required fields and the static entity table
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - Config.String redacts both, so the rendered config is safe to log
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.OSC.Listen)
package config
