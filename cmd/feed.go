// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/luxcast/luxcast/internal/config"
	"github.com/luxcast/luxcast/internal/feed"
)

// loadConfig reads the config file when one is given and overlays the
// connection flags, so flags always win over the file.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := rootCmd.PersistentFlags()
	if portName != "" {
		cfg.Feed.Serial.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Feed.Serial.Baud = baudRate
	}
	if wsURL != "" {
		cfg.Feed.WebSocket.URL = wsURL
	}
	if wsUsername != "" {
		cfg.Feed.WebSocket.Username = wsUsername
	}
	if wsNoSSLVerify {
		cfg.Feed.WebSocket.NoSSLVerify = true
	}
	if wsListen != "" {
		cfg.Feed.WebSocket.Listen = wsListen
	}
	if samplesFile != "" {
		cfg.Feed.File.Path = samplesFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openFeed opens the configured sample source, resolving the websocket
// password first when a dialed source needs one.
func openFeed(cfg *config.Config) (feed.Feed, string, error) {
	password := ""
	if cfg.Feed.WebSocket.URL != "" && cfg.Feed.WebSocket.Username != "" {
		var err error
		password, err = getPassword()
		if err != nil {
			return nil, "", err
		}
	}
	return feed.Open(cfg.Feed, password)
}

// getPassword retrieves the sampler password from the environment or
// prompts the user
func getPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("LUXCAST_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}
