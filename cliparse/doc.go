// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

LoadEnvFile seeds the environment from a .env file, then ParseFlags returns
a Config struct with all settings:

	if err := cliparse.LoadEnvFile(".env"); err != nil {
		log.Fatal(err)
	}
	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Environment Variables

Flags fall back to environment variables:

	PORT            → -p
	DATABASE_URL    → -d
	DATABASE_TYPE   → -t
	LOG_LEVEL       → -log-level
	JWT_SECRET      → -jwt-secret
	EVENT_SECRET    → -event-secret
	SUBSCAN_API_KEY → -subscan-key
	NETWORK         → -network
	WS_PROVIDER     → -ws
	LOADING_TIMEOUT → -loading-timeout
	IMAGE_DIR       → -image-dir

CHAIN_DECIMALS, CHAIN_UNIT and IMAGE_BASE_URL are read from the environment
only. CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if required values are missing or malformed.
A missing Subscan key is reported as a *referendum.ConfigurationError.
*/
package cliparse
