package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

type legacyPSUSection struct {
	Port *string `yaml:"port"`
}

type legacyEpicsSection struct {
	Prefix *string `yaml:"prefix"`
}

type legacyHTTPSection struct {
	Enable   bool    `yaml:"enable"`
	URL      *string `yaml:"url"`
	Username string  `yaml:"username"`
	Password string  `yaml:"password"`
}

type legacySection struct {
	PSU   *legacyPSUSection   `yaml:"psu"`
	Epics *legacyEpicsSection `yaml:"epics"`
	HTTP  *legacyHTTPSection  `yaml:"http"`
}

// decodeLegacy reads the section-list layout made of psu (port), epics (prefix) and http (enable, url, username,
// password) sections
func decodeLegacy(data []byte, cfg *Config) error {
	var sections []legacySection
	err := yaml.Unmarshal(data, &sections)
	if err != nil {
		return err
	}

	for _, section := range sections {
		if section.PSU != nil {
			port := "/dev/ttyUSB0"
			if section.PSU.Port != nil {
				port = *section.PSU.Port
			}
			cfg.Instrument.Address = fmt.Sprintf("ASRL%s::INSTR", port)
		}

		if section.Epics != nil {
			cfg.PV.Prefix = "PS:"
			if section.Epics.Prefix != nil {
				cfg.PV.Prefix = *section.Epics.Prefix
			}
		}

		if section.HTTP != nil && section.HTTP.Enable {
			if section.HTTP.URL == nil {
				return errors.New("HTTP section enabled but 'url' parameter is not provided")
			}

			cfg.HTTP.Enabled = true
			cfg.HTTP.URL = *section.HTTP.URL
			cfg.HTTP.Username = section.HTTP.Username
			cfg.HTTP.Password = section.HTTP.Password
		}
	}

	return nil
}
