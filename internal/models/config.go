package models

import "time"

// Config represents the application configuration
type Config struct {
	Database     DatabaseConfig
	Logging      LoggingConfig
	Http         HttpConfig
	Sweeper      SweeperConfig
	ProtocolFile string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// HttpConfig holds ledgerd listener settings
type HttpConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	AdminJwtSecret string
}

// SweeperConfig holds spent-option sweeper settings
type SweeperConfig struct {
	Enabled  bool
	Interval time.Duration
}

// ProtocolSettings is the protocol bootstrap description loaded from the protocol file.
type ProtocolSettings struct {
	Authority          string        `yaml:"authority"`
	TreasuryAuthority  string        `yaml:"treasury_authority"`
	NoteAssetId        string        `yaml:"note_asset_id"`
	TokenAssetId       string        `yaml:"token_asset_id"`
	CollectionId       string        `yaml:"collection_id"`
	FeeBps             *uint16       `yaml:"fee_bps"`
	CustodyAccount     string        `yaml:"custody_account"`
	AllowedDurations   []uint32      `yaml:"allowed_durations"`
	NavExpression      string        `yaml:"nav_expression"`
	Claim              ClaimSettings `yaml:"claim"`
	OptionStorageUnits uint64        `yaml:"option_storage_units"`
}

// ClaimSettings describes the metadata attached to minted claim instruments.
type ClaimSettings struct {
	Name        string `yaml:"name"`
	Symbol      string `yaml:"symbol"`
	UriTemplate string `yaml:"uri_template"`
}
