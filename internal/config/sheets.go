package config

import (
	"os"

	"github.com/Veraticus/the-carbon-must-flow/internal/sheets"
	"github.com/spf13/viper"
)

// LoadSheetsConfig builds the exporter configuration. Values come from viper
// (config file or CARBON_SHEETS_* variables) and then from GOOGLE_SHEETS_*
// variables for anything still unset.
func LoadSheetsConfig() (*sheets.Config, error) {
	config := sheets.DefaultConfig()

	fields := []struct {
		target *string
		key    string
		env    string
		path   bool
	}{
		{&config.ServiceAccountPath, "sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", true},
		{&config.ClientID, "sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID", false},
		{&config.ClientSecret, "sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET", false},
		{&config.RefreshToken, "sheets.refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN", false},
		{&config.SpreadsheetID, "sheets.spreadsheet_id", "GOOGLE_SHEETS_SPREADSHEET_ID", false},
		{&config.SpreadsheetName, "sheets.spreadsheet_name", "GOOGLE_SHEETS_SPREADSHEET_NAME", false},
	}

	for _, f := range fields {
		v := viper.GetString(f.key)
		if v == "" {
			v = os.Getenv(f.env)
		}
		if v == "" {
			continue
		}
		if f.path {
			v = ExpandPath(v)
		}
		*f.target = v
	}

	if v := viper.GetString("sheets.timezone"); v != "" {
		config.TimeZone = v
	}
	if v := viper.GetInt("sheets.batch_size"); v > 0 {
		config.BatchSize = v
	}
	if v := viper.GetDuration("sheets.retry_delay"); v > 0 {
		config.RetryDelay = v
	}
	if viper.IsSet("sheets.formatting") {
		config.EnableFormatting = viper.GetBool("sheets.formatting")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
