package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/hangapp/hang/internal"
	"github.com/hangapp/hang/internal/config"
	"github.com/hangapp/hang/internal/log"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"server": map[string]any{
			"baseURL":       "https://hang.yourcompany.com",
			"addr":          ":8080",
			"signingSecret": map[string]string{"$env": "SIGNING_SECRET"},
			"storage":       "memory",
			"google": map[string]any{
				"clientId":     map[string]string{"$env": "GOOGLE_CLIENT_ID"},
				"clientSecret": map[string]string{"$env": "GOOGLE_CLIENT_SECRET"},
			},
			"zoom": map[string]any{
				"clientId":     map[string]string{"$env": "ZOOM_CLIENT_ID"},
				"clientSecret": map[string]string{"$env": "ZOOM_CLIENT_SECRET"},
			},
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func main() {
	conf := flag.String("config", "", "path to config file (required)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	if *validate {
		fmt.Printf("Validating: %s\nResult: PASS\n", *conf)
		return
	}

	log.LogInfoWithFields("main", "Starting hangd", map[string]any{
		"version": BuildVersion,
		"config":  *conf,
	})

	ctx := context.Background()
	hang, err := internal.NewHang(ctx, cfg)
	if err != nil {
		log.LogError("Failed to create broker application: %v", err)
		os.Exit(1)
	}

	if err := hang.Run(); err != nil {
		log.LogError("Server exited with error: %v", err)
		os.Exit(1)
	}
}
