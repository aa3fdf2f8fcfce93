package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Store driver names accepted in store_driver.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config holds settings for both services. A single struct keeps the
// intake and relay processes reading the same file.
type Config struct {
	// Intake HTTP server.
	HTTPAddr          string        `mapstructure:"http_addr" yaml:"http_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	WebDir            string        `mapstructure:"web_dir" yaml:"web_dir"`

	// Relay listener; host/port is the endpoint the intake dials,
	// relay_bind is the interface the listener binds.
	RelayBind string `mapstructure:"relay_bind" yaml:"relay_bind"`
	RelayHost string `mapstructure:"relay_host" yaml:"relay_host"`
	RelayPort int    `mapstructure:"relay_port" yaml:"relay_port"`

	// Wire limit for one relayed message payload.
	MaxMessageBytes int `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`

	// Document store.
	StoreDriver     string `mapstructure:"store_driver" yaml:"store_driver"`
	MongoHost       string `mapstructure:"mongo_host" yaml:"mongo_host"`
	MongoPort       int    `mapstructure:"mongo_port" yaml:"mongo_port"`
	MongoUser       string `mapstructure:"mongo_user" yaml:"mongo_user"`
	MongoPass       string `mapstructure:"mongo_pass" yaml:"mongo_pass"`
	MongoAuthDB     string `mapstructure:"mongo_auth_db" yaml:"mongo_auth_db"`
	MongoDB         string `mapstructure:"mongo_db" yaml:"mongo_db"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
	SQLitePath      string `mapstructure:"sqlite_path" yaml:"sqlite_path"`

	// Lifecycle.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		HTTPAddr:          ":3000",
		ReadHeaderTimeout: 5 * time.Second,
		WebDir:            "web",
		RelayBind:         "0.0.0.0",
		RelayHost:         "localhost",
		RelayPort:         5000,
		MaxMessageBytes:   64 * 1024,
		StoreDriver:       DriverMongo,
		MongoHost:         "localhost",
		MongoPort:         27017,
		MongoAuthDB:       "admin",
		MongoDB:           "messages_database",
		MongoCollection:   "messages",
		SQLitePath:        "formrelay.db",
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
	}
}

// RelayAddr is the endpoint the intake server dials.
func (c Config) RelayAddr() string {
	return net.JoinHostPort(c.RelayHost, strconv.Itoa(c.RelayPort))
}

// RelayBindAddr is the address the relay listener binds.
func (c Config) RelayBindAddr() string {
	return net.JoinHostPort(c.RelayBind, strconv.Itoa(c.RelayPort))
}

// MongoURI assembles the connection string, with credentials when
// configured.
func (c Config) MongoURI() string {
	host := net.JoinHostPort(c.MongoHost, strconv.Itoa(c.MongoPort))
	if c.MongoUser == "" {
		return "mongodb://" + host
	}
	return fmt.Sprintf("mongodb://%s:%s@%s/?authSource=%s",
		url.QueryEscape(c.MongoUser), url.QueryEscape(c.MongoPass), host, c.MongoAuthDB)
}
