// Package config holds the shell's configuration.
package config

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// ConfigurationName is the expected file name of the configuration.
	ConfigurationName = "ush.yaml"

	// AbortLegacy keeps the historical pipeline failure check, which
	// compares an exit code to a value it can never take and therefore
	// never aborts.
	AbortLegacy = "legacy"
	// AbortStrict treats any non-zero stage exit as a pipeline failure and
	// signals the pipeline's remaining processes.
	AbortStrict = "strict"
)

type Configuration struct {
	// Prompt is the prompt template; \h expands to the hostname.
	Prompt string `json:"prompt" validate:"required"`

	// RCFile is the startup file processed before the first prompt,
	// relative to the user's home directory.
	RCFile string `json:"rc_file" validate:"required"`

	// AbortMode selects how a pipeline reacts to a failing stage.
	AbortMode string `json:"abort_mode" validate:"oneof=legacy strict"`

	// HistorySize bounds the interactive history.
	HistorySize int `json:"history_size" validate:"gte=0"`
}

// Default returns the configuration used when no file is present.
func Default() *Configuration {
	return &Configuration{
		Prompt:      `\h% `,
		RCFile:      ".ushrc",
		AbortMode:   AbortLegacy,
		HistorySize: 500,
	}
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}
