// Package config provides configuration for the persistd server and CLI.
//
// Configuration is layered: built-in defaults, then persist.json (if
// present), then PERSIST_* environment variables, then command-line flags.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "host": "localhost",
//	    "port": 7400,
//	    "maxBodyBytes": 1048576,
//	    "allowedOrigins": ["https://app.example.com"]
//	  },
//	  "storage": {
//	    "backend": "sqlite",
//	    "prefix": "",
//	    "sqlite": { "path": "persist.db", "table": "persist_items" },
//	    "s3": { "bucket": "prefs", "prefix": "v1/", "region": "us-east-1" }
//	  },
//	  "log": { "level": "info", "format": "text" }
//	}
//
// # Environment
//
//	PERSIST_SERVER_PORT=8080
//	PERSIST_STORAGE_BACKEND=s3
//	PERSIST_STORAGE_S3_BUCKET=prefs
//	PERSIST_LOG_LEVEL=debug
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.ApplyEnv(nil); err != nil {
//	    log.Fatal(err)
//	}
package config
