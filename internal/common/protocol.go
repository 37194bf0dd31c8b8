package common

import (
	"fmt"
	"os"
	"path/filepath"

	"note-option-ledger-go/internal/models"

	"gopkg.in/yaml.v2"
)

const defaultCustodyAccount = "protocol-custody"

// LoadProtocolSettings reads the protocol bootstrap file. Relative paths are
// resolved against the working directory.
func LoadProtocolSettings(protocolFile string) (*models.ProtocolSettings, error) {
	var protocolPath string
	if filepath.IsAbs(protocolFile) {
		protocolPath = protocolFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		protocolPath = filepath.Join(wd, protocolFile)
	}

	data, err := os.ReadFile(protocolPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", protocolFile, err)
	}

	return ParseProtocolSettings(data)
}

func ParseProtocolSettings(data []byte) (*models.ProtocolSettings, error) {
	var settings models.ProtocolSettings
	if err := yaml.UnmarshalStrict(data, &settings); err != nil {
		return nil, fmt.Errorf("unable to parse protocol settings: %w", err)
	}

	if settings.NoteAssetId == "" {
		return nil, fmt.Errorf("protocol settings missing note_asset_id")
	}
	if settings.TokenAssetId == "" {
		return nil, fmt.Errorf("protocol settings missing token_asset_id")
	}
	if settings.NoteAssetId == settings.TokenAssetId {
		return nil, fmt.Errorf("note_asset_id and token_asset_id must differ, both are %s", settings.NoteAssetId)
	}
	if settings.CollectionId == "" {
		return nil, fmt.Errorf("protocol settings missing collection_id")
	}
	for i, d := range settings.AllowedDurations {
		if d == 0 {
			return nil, fmt.Errorf("allowed_durations[%d] must be positive", i)
		}
	}
	if settings.CustodyAccount == "" {
		settings.CustodyAccount = defaultCustodyAccount
	}

	return &settings, nil
}
