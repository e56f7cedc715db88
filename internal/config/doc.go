// Package config handles configuration loading for ank-server and
// ank-agent.
//
// Configuration is YAML with environment variable expansion (${VAR_NAME})
// applied to the raw file before unmarshaling, and strict decoding
// (unknown keys rejected) via yaml.v3's Decoder.KnownFields.
//
// Server:
//
//	listen_addr: "0.0.0.0:25551"
//	startup_state: "./startup.yaml"
//	database:
//	  path: "/var/lib/ankaios/audit.db"
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Agent:
//
//	agent_name: "agent_A"
//	server_addr: "127.0.0.1:25551"
//	log_dir: "/var/lib/ankaios/agent_A/logs"
//	backoff:
//	  base: "1s"
//	  cap: "30s"
//	  reset_after: "1m"
package config
