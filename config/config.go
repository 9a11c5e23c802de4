package config

import (
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path"`

	// StoragePath is the directory holding the local draft database.
	StoragePath string `mapstructure:"storage_path" validate:"required"`

	API       APIConfig       `mapstructure:"api" validate:"required"`
	Recording RecordingConfig `mapstructure:"recording" validate:"required"`
	AutoSave  AutoSaveConfig  `mapstructure:"auto_save" validate:"required"`
}

type APIConfig struct {
	NormalModeURL string        `mapstructure:"normal_mode_url" validate:"required,url"`
	TestModeURL   string        `mapstructure:"test_mode_url" validate:"required,url"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"required"`
	RetryAttempts int           `mapstructure:"retry_attempts" validate:"required,min=1"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" validate:"required"`
}

type RecordingConfig struct {
	MaxDuration time.Duration `mapstructure:"max_duration" validate:"required"`
	MaxFileSize int64         `mapstructure:"max_file_size" validate:"required"`
	MinSections int           `mapstructure:"min_sections" validate:"required,min=1"`
}

type AutoSaveConfig struct {
	Interval   time.Duration `mapstructure:"interval" validate:"required"`
	Debounce   time.Duration `mapstructure:"debounce" validate:"required"`
	Expiration time.Duration `mapstructure:"expiration" validate:"required"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env varaibles.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	v.SetDefault("SERVICE_NAME", "dictamed")
	v.SetDefault("VERSION", "8.0.0")
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_PATH", "")
	v.SetDefault("STORAGE_PATH", ".")

	v.SetDefault("API__NORMAL_MODE_URL", "https://n8n.srv1104707.hstgr.cloud/webhook/DictaMedNormalMode")
	v.SetDefault("API__TEST_MODE_URL", "https://n8n.srv1104707.hstgr.cloud/webhook/DictaMed")
	v.SetDefault("API__TIMEOUT", "30s")
	v.SetDefault("API__RETRY_ATTEMPTS", 3)
	v.SetDefault("API__RETRY_DELAY", "1s")

	v.SetDefault("RECORDING__MAX_DURATION", "120s")
	v.SetDefault("RECORDING__MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("RECORDING__MIN_SECTIONS", 3)

	v.SetDefault("AUTO_SAVE__INTERVAL", "30s")
	v.SetDefault("AUTO_SAVE__DEBOUNCE", "2s")
	v.SetDefault("AUTO_SAVE__EXPIRATION", "24h")
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}

// EndpointFor returns the collector endpoint for a submission mode. The
// texte mode shares the test-mode webhook, as the collector multiplexes
// on the payload's mode field.
func (c *AppConfig) EndpointFor(mode string) string {
	if mode == "normal" {
		return c.API.NormalModeURL
	}
	return c.API.TestModeURL
}
