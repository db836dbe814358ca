package main

import (
	"encoding/json"
	"os"
	"time"
)

type Config struct {
	HttpPort             int           `json:"http_port"`
	DbConnString         string        `json:"db_conn_string"`
	RedisAddr            string        `json:"redis_addr"`
	Provider             string        `json:"provider"`
	WaApiBase            string        `json:"wa_api_base"`
	WaToken              string        `json:"wa_token"`
	WaPhoneNumberID      string        `json:"wa_phone_number_id"`
	WaVerifyToken        string        `json:"wa_verify_token"`
	WaWebhookSecret      string        `json:"wa_webhook_secret"`
	DefaultTenant        string        `json:"default_tenant"`
	AggregationWindowStr string        `json:"aggregation_window"`
	AggregationWindow    time.Duration `json:"-"`
}

// ReadConfigJson reads json formatted configuration from the given file
func ReadConfigJson(configFile string) (*Config, error) {
	content, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	cfg := new(Config)

	if err = json.Unmarshal(content, cfg); err != nil {
		return nil, err
	}

	if cfg.AggregationWindowStr != "" {
		cfg.AggregationWindow, err = time.ParseDuration(cfg.AggregationWindowStr)
		if err != nil {
			return nil, err
		}
	}
	if cfg.DefaultTenant == "" {
		cfg.DefaultTenant = "default"
	}

	return cfg, nil
}
