package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Configuration comes from environment variables; the service runs with DB
// connection settings, queue URLs and the AWS endpoint set per environment
// (LocalStack in local dev).

type Config struct {
	DBHost                string `mapstructure:"DB_HOST"`
	DBPort                string `mapstructure:"DB_PORT"`
	DBUser                string `mapstructure:"DB_USER"`
	DBPassword            string `mapstructure:"DB_PASSWORD"`
	DBName                string `mapstructure:"DB_NAME"`
	ServerPort            string `mapstructure:"SERVER_PORT"`
	Timezone              string `mapstructure:"TIMEZONE"`
	AWSRegion             string `mapstructure:"AWS_REGION"`
	AttendanceSQSQueueURL string `mapstructure:"ATTENDANCE_SQS_QUEUE_URL"`
	CorrectionSQSQueueURL string `mapstructure:"CORRECTION_SQS_QUEUE_URL"`
	AWSEndpoint           string `mapstructure:"AWS_ENDPOINT"`
	LegacyAPIURL          string `mapstructure:"LEGACY_API_URL"`
	IsLocalDev            bool   `mapstructure:"IS_LOCAL_DEV"`
	OTLPExporterEndpoint  string `mapstructure:"OTLP_EXPORTER_ENDPOINT"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("DB_HOST", "db")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "attendance_db")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("TIMEZONE", "UTC") // Reference location all work dates are anchored to
	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("ATTENDANCE_SQS_QUEUE_URL", "http://localstack:4566/000000000000/attendance-events-queue")
	viper.SetDefault("CORRECTION_SQS_QUEUE_URL", "http://localstack:4566/000000000000/correction-events-queue")
	viper.SetDefault("AWS_ENDPOINT", "http://localstack:4566")
	viper.SetDefault("LEGACY_API_URL", "http://localhost:8081/")
	viper.SetDefault("IS_LOCAL_DEV", false)
	viper.SetDefault("OTLP_EXPORTER_ENDPOINT", "jaeger:4317")

	// Read in environment variables that match the keys.
	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	return
}

// Location resolves the configured reference timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
