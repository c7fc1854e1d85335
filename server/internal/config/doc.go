// Package config loads config.yaml.
//
// Config fields:
//   - Server.Port: HTTP listen port (default 3000, PORT env overrides)
//   - Server.HTTPTimeout: timeout for every outbound request (default 10s)
//   - Server.UTCOffset: zone offset card timestamps are shown in (default 8h)
//   - Providers[]: name, hash (routing key), type (webhook|forward|bot)
//     and a type-specific config block decoded by Provider.Webhook or
//     Provider.Bot
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) reports valid edits of the file via fsnotify.
package config
