package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Store     StoreConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address         string
	Auth            AuthConfig
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
	// TokenTTL bounds minted bearer tokens.
	TokenTTL time.Duration `mapstructure:"tokenTTL"`
	// HandshakeTimeout bounds how long a WebSocket connection may stay
	// registered without authenticating before it is closed.
	HandshakeTimeout time.Duration `mapstructure:"handshakeTimeout"`
}

type ConnectionLimitConfig struct {
	MaxPerIP int `mapstructure:"maxPerIP"`
}

type TransportConfig struct {
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

type StoreConfig struct {
	Path string
}

type LogConfig struct {
	Level string
}
