package util

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ValentinKolb/wKV/lib/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the flags selecting and configuring the backend to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "backend"
	cmd.PersistentFlags().String(key, string(common.BackendIDB), WrapString("The backend holding the wallet databases (idb, memsnap)"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, "data", WrapString("Directory of the bolt files, leveldb directories or snapshot blobs"))

	key = "db"
	cmd.PersistentFlags().String(key, "default", WrapString("Name of the wallet database to operate on"))

	key = "engine"
	cmd.PersistentFlags().String(key, string(common.EngineBolt), WrapString("(idb) The object store engine (bolt, leveldb)"))

	key = "store-name"
	cmd.PersistentFlags().String(key, "fedimint", WrapString("(idb) Name of the object store inside each database"))

	key = "blob"
	cmd.PersistentFlags().String(key, string(common.BlobFS), WrapString("(memsnap) Where the snapshots are written (fs, memory). Memory blobs are lost when the command exits"))

	key = "namespace"
	cmd.PersistentFlags().String(key, "", WrapString("(memsnap) Prefix of the blob name of every database"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print the transaction metrics in Prometheus format after the command"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("wkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetStoreConfig reads the store configuration from viper
func GetStoreConfig() common.StoreConfig {
	return common.StoreConfig{
		Backend:   common.Backend(viper.GetString("backend")),
		DataDir:   viper.GetString("data-dir"),
		Engine:    common.Engine(viper.GetString("engine")),
		StoreName: viper.GetString("store-name"),
		Blob:      common.BlobKind(viper.GetString("blob")),
		Namespace: viper.GetString("namespace"),
		LogLevel:  viper.GetString("log-level"),
		Metrics:   viper.GetBool("metrics"),
	}
}

// GetDatabaseName returns the name of the database the command operates on
func GetDatabaseName() string {
	return viper.GetString("db")
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// ParseHex decodes a hex command argument. The empty string is the empty byte slice.
func ParseHex(name, arg string) ([]byte, error) {
	b, err := hex.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("%s must be hex encoded: %w", name, err)
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}
