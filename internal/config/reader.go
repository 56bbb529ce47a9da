package config

import "github.com/ilyakaznacheev/cleanenv"

// Read loads the configuration from the process environment.
func Read() (*Config, error) {
	cfg := new(Config)
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
