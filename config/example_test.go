package config_test

import (
	"fmt"
	"log"

	"github.com/G-Node/wdat2-sub001/config"
)

// ExampleLoader_Load demonstrates loading configuration from multiple layers.
func ExampleLoader_Load() {
	loader := config.NewLoader()

	// Add base configuration layer
	loader.AddLayer("testdata/base.yaml")

	// Add environment-specific overrides
	loader.AddLayer("testdata/production.yaml")

	cfg, err := loader.Load()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(cfg.Server.BaseURL)
	fmt.Println(cfg.Worker.Mode, cfg.Cache.Capacity)
	fmt.Println(cfg.Server.Breaker.OpenTimeout)
	// Output:
	// https://gnode.example.org
	// nats 500
	// 1m0s
}
