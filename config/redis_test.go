package config_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/order-lifecycle-streams/config"
)

// givenCertificateFiles writes a self-signed certificate and its key as PEM files.
func givenCertificateFiles(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "localhost"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))

	return certFile, keyFile
}

func Test_RedisConfig_Options_When_TLS_Is_Off_It_Builds_Plain_Options(t *testing.T) {
	// setup
	cfg := config.RedisConfig{Host: "cache", Port: 6379, User: "default", Password: "secret", MaxConnections: 20}

	// act
	options, err := cfg.Options()

	// assert
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", options.Addr)
	assert.Equal(t, "default", options.Username)
	assert.Equal(t, "secret", options.Password)
	assert.Equal(t, 20, options.PoolSize)
	assert.Nil(t, options.TLSConfig)
}

func Test_RedisConfig_Options_When_TLS_Material_Is_Given_It_Loads_CA_And_Client_Pair(t *testing.T) {
	// setup
	certFile, keyFile := givenCertificateFiles(t)
	cfg := config.RedisConfig{
		Host:           "cache",
		Port:           6380,
		MaxConnections: 4,
		TLS:            true,
		CACert:         certFile,
		ClientCert:     certFile,
		ClientKey:      keyFile,
	}

	// act
	options, err := cfg.Options()

	// assert
	require.NoError(t, err)
	require.NotNil(t, options.TLSConfig)
	assert.Equal(t, "cache", options.TLSConfig.ServerName)
	assert.NotNil(t, options.TLSConfig.RootCAs)
	assert.Len(t, options.TLSConfig.Certificates, 1)
}

func Test_RedisConfig_Options_When_The_CA_File_Is_Not_PEM_It_Fails(t *testing.T) {
	// setup
	caFile := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(caFile, []byte("not a certificate"), 0o600))
	cfg := config.RedisConfig{Host: "cache", Port: 6380, MaxConnections: 4, TLS: true, CACert: caFile}

	// act
	_, err := cfg.Options()

	// assert
	assert.ErrorIs(t, err, config.ErrInvalidCACert)
}

func Test_RedisConfig_Options_When_A_File_Is_Missing_It_Fails(t *testing.T) {
	// setup
	cfg := config.RedisConfig{Host: "cache", Port: 6380, MaxConnections: 4, TLS: true, CACert: "/does/not/exist.pem"}

	// act
	_, err := cfg.Options()

	// assert
	assert.ErrorIs(t, err, config.ErrLoadingTLSMaterial)
}
