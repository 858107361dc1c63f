package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type EnvGetter interface {
	LookupEnv(key string) (string, bool)
}

type RealEnvGetter struct{}

func (r *RealEnvGetter) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnv is an EnvGetter over a fixed set of variables.
type MapEnv map[string]string

func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// DefaultEnvFile is looked up with FindEnvFile when no explicit file was given.
const DefaultEnvFile = ".env"

// LoadEnvFiles loads variables from dotenv files into the process
// environment. Variables already set in the environment win. An explicit
// file that does not exist is an error; a missing DefaultEnvFile is not.
func LoadEnvFiles(logger *logrus.Logger, explicit ...string) error {
	files := explicit
	if len(files) == 0 {
		found, err := FindEnvFile(".")
		if err != nil {
			return err
		}
		if found == "" {
			logger.Debug("no .env file; relying on process environment")
			return nil
		}
		files = []string{found}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", file, err)
		}
		logger.WithField("file", file).Debug("loaded env file")
	}
	return nil
}

// Entry is one recognized option as shown by `probe config`.
type Entry struct {
	Key   string
	Value string // masked for secrets, "(not set)" when empty
}

// Secrets are shown masked; the private key is never shown at all.
var (
	hiddenKeys = map[string]bool{KeyPrivateKey: true}
	maskedKeys = map[string]bool{KeyCDSEClientSecret: true, KeyEarthdataToken: true}
)

// Entries lists every recognized option in a stable order.
func (c Config) Entries() []Entry {
	keys := []string{
		KeyRPCURL, KeyPrivateKey, KeyWalletAddress, KeyContractAddress,
		KeyCDSEClientID, KeyCDSEClientSecret, KeyCDSETokenURL, KeyCDSESTACURL, KeyCDSECollection, KeyCDSEItemLimit,
		KeyEarthdataToken, KeyEarthdataCMRURL, KeyEarthdataCollections,
		KeyTimeout, KeyReuseClients, KeyLogLevel,
	}
	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		value := c.value(key)
		switch {
		case value == "":
			value = "(not set)"
		case hiddenKeys[key]:
			value = "[hidden]"
		case maskedKeys[key]:
			value = maskValue(value)
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	return entries
}

func maskValue(value string) string {
	r := []rune(value)
	if len(r) <= 6 {
		return "•••"
	}
	return string(r[:3]) + "•••" + string(r[len(r)-3:])
}
