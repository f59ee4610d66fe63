// Package config handles loading and resolving occupancy dashboard configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Loading a .env file and overriding with environment variables
//   - Resolving the source credential triple (fatal ConfigError if incomplete)
//   - Validation of the remaining settings and default value handling
//
// Security Considerations:
//   - The credential token should be set via CREDENTIAL_TOKEN or a .env file,
//     never committed in config.yaml
//   - The config and .env files should have restricted permissions (0600)
//
// Usage:
//
//	if err := config.LoadEnvFile(".env"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := config.Load("configs/config.yaml")
//	var cfgErr *config.ConfigError
//	if errors.As(err, &cfgErr) {
//	    log.Fatalf("cannot start: %v", cfgErr)
//	}
//	fmt.Println(cfg.Source.Bucket, cfg.Source.Field)
package config
