package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisDialTimeout  = 5 * time.Second
	redisReadTimeout  = 10 * time.Second
	redisWriteTimeout = 5 * time.Second
	redisMinIdleConns = 2
)

var (
	// ErrInvalidRedisPort is returned for ports outside 1..65535.
	ErrInvalidRedisPort = errors.New("redis port must be between 1 and 65535")

	// ErrInvalidMaxConnections is returned for a pool size below one.
	ErrInvalidMaxConnections = errors.New("max connections must be at least 1")

	// ErrIncompleteClientCert is returned when only one of client certificate and key is given.
	ErrIncompleteClientCert = errors.New("client certificate and key must be given together")

	// ErrLoadingTLSMaterial wraps failures to read certificates or keys.
	ErrLoadingTLSMaterial = errors.New("loading TLS material failed")

	// ErrInvalidCACert is returned when the CA file holds no PEM certificate.
	ErrInvalidCACert = errors.New("CA file holds no PEM certificate")
)

// RedisConfig describes the connection to Redis.
type RedisConfig struct {
	Host           string `env:"HOST"            envDefault:"localhost"`
	Port           int    `env:"PORT"            envDefault:"6379"`
	User           string `env:"USER"            envDefault:"default"`
	Password       string `env:"PASSWORD"`
	MaxConnections int    `env:"MAX_CONNECTIONS" envDefault:"100"`
	TLS            bool   `env:"TLS"`
	CACert         string `env:"CA_CERT"`
	ClientCert     string `env:"CLIENT_CERT"`
	ClientKey      string `env:"CLIENT_KEY"`
}

func (c *RedisConfig) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.Host, "host", c.Host, "redis host")
	fs.IntVar(&c.Port, "port", c.Port, "redis port")
	fs.StringVar(&c.User, "user", c.User, "redis user")
	fs.StringVar(&c.Password, "password", c.Password, "redis password")
	fs.IntVar(&c.MaxConnections, "max-connections", c.MaxConnections, "redis connection pool size")
	fs.BoolVar(&c.TLS, "tls", c.TLS, "connect to redis with TLS")
	fs.StringVar(&c.CACert, "ca-cert", c.CACert, "PEM file with the CA that signed the redis server certificate")
	fs.StringVar(&c.ClientCert, "client-cert", c.ClientCert, "PEM file with the client certificate for mutual TLS")
	fs.StringVar(&c.ClientKey, "client-key", c.ClientKey, "PEM file with the client key for mutual TLS")
}

func (c RedisConfig) validate() error {
	var problems []error

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, ErrInvalidRedisPort)
	}

	if c.MaxConnections < 1 {
		problems = append(problems, ErrInvalidMaxConnections)
	}

	if (c.ClientCert == "") != (c.ClientKey == "") {
		problems = append(problems, ErrIncompleteClientCert)
	}

	return errors.Join(problems...)
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Options builds the go-redis client options, loading the TLS material when TLS is enabled.
func (c RedisConfig) Options() (*redis.Options, error) {
	options := &redis.Options{
		Addr:         c.Addr(),
		Username:     c.User,
		Password:     c.Password,
		PoolSize:     c.MaxConnections,
		MinIdleConns: min(redisMinIdleConns, c.MaxConnections),
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisReadTimeout,
		WriteTimeout: redisWriteTimeout,
	}

	if !c.TLS {
		return options, nil
	}

	tlsConfig, err := c.tlsConfig()
	if err != nil {
		return nil, err
	}

	options.TLSConfig = tlsConfig

	return options, nil
}

func (c RedisConfig) tlsConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, ServerName: c.Host}

	if c.CACert != "" {
		pem, err := os.ReadFile(c.CACert)
		if err != nil {
			return nil, errors.Join(ErrLoadingTLSMaterial, err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, ErrInvalidCACert
		}

		tlsConfig.RootCAs = pool
	}

	if c.ClientCert != "" {
		certificate, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, errors.Join(ErrLoadingTLSMaterial, err)
		}

		tlsConfig.Certificates = []tls.Certificate{certificate}
	}

	return tlsConfig, nil
}
