package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// migrateJSONToBolt imports preferences written by the JSON backend into a
// fresh bolt database. The JSON file is renamed afterwards so the import
// runs once.
func migrateJSONToBolt(src *JSONStore, dst *BoltStore) error {
	if !src.exists() {
		return nil
	}
	empty, err := dst.empty()
	if err != nil {
		return fmt.Errorf("inspect preference db: %w", err)
	}
	if !empty {
		return nil
	}

	prefs, err := src.Load()
	if err != nil {
		return fmt.Errorf("read json preferences: %w", err)
	}
	if err := dst.Save(prefs); err != nil {
		return fmt.Errorf("import json preferences: %w", err)
	}
	if err := os.Rename(src.Path(), src.Path()+".imported"); err != nil {
		log.Warn().Err(err).Str("path", src.Path()).Msg("config: could not rename imported preferences file")
	}
	log.Info().Str("from", src.Path()).Str("to", dst.Path()).Msg("config: imported preferences")
	return nil
}
