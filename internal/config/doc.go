/*
Package config provides configuration management for jailstore.

Configuration is assembled from three sources with increasing precedence:
compiled-in defaults (NewDefault), a YAML file (LoadFromFile) and
environment variables prefixed with JAILSTORE_ (LoadFromEnv). Command line
flags are applied last by the caller.

# Configuration Structure

	global:
	  log_level: INFO        # DEBUG, INFO, WARN, ERROR
	  log_format: text       # text or json
	  log_file: ""
	store:
	  uri: memory://default  # memory://, file://, badger://, s3://
	  jail: /
	  pwd: /
	  read_only: false
	slots:
	  slot: tree
	  compression: {enabled: false, level: 3}
	  quota_bytes: 0
	  badger: {directory: ~/.jailstore/badger, in_memory: false}
	  s3:
	    bucket: ""
	    prefix: jailstore/
	    region: us-east-1
	    max_retries: 3
	    request_timeout: 30s
	    storage_class: STANDARD
	  circuit_breaker: {enabled: true, failure_threshold: 5, timeout: 30s}
	monitoring:
	  metrics: {enabled: false, port: 9090, path: /metrics, namespace: jailstore}
	retry:
	  max_attempts: 3
	  initial_delay: 200ms
	  max_delay: 5s

# Environment Variables

	JAILSTORE_LOG_LEVEL, JAILSTORE_LOG_FORMAT, JAILSTORE_LOG_FILE
	JAILSTORE_URI, JAILSTORE_JAIL, JAILSTORE_PWD, JAILSTORE_READ_ONLY
	JAILSTORE_SLOT, JAILSTORE_COMPRESSION_ENABLED, JAILSTORE_QUOTA_BYTES
	JAILSTORE_BADGER_DIR, JAILSTORE_S3_BUCKET, JAILSTORE_S3_REGION, JAILSTORE_S3_ENDPOINT
	JAILSTORE_METRICS_ENABLED, JAILSTORE_METRICS_PORT
	JAILSTORE_RETRY_MAX_ATTEMPTS, JAILSTORE_RETRY_INITIAL_DELAY

# Errors

Read, parse and environment conversion failures are CONFIG_LOAD errors.
Validate returns INVALID_CONFIG errors whose "field" context names the
offending setting:

	cfg := config.NewDefault()
	if err := cfg.LoadFromFile("jailstore.yaml"); err != nil {
		return err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
*/
package config
