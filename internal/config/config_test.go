package config

import (
	"reflect"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("BUSINESS_UTC_OFFSET_HOURS", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := Load()
	if cfg.Port != "8081" {
		t.Errorf("Port = %q, want 8081", cfg.Port)
	}
	if cfg.BusinessUTCOffsetHours != 8 {
		t.Errorf("BusinessUTCOffsetHours = %d, want 8", cfg.BusinessUTCOffsetHours)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Errorf("KafkaBrokers = %v, want empty", cfg.KafkaBrokers)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("BUSINESS_UTC_OFFSET_HOURS", "-5")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if cfg.BusinessUTCOffsetHours != -5 {
		t.Errorf("BusinessUTCOffsetHours = %d, want -5", cfg.BusinessUTCOffsetHours)
	}
	want := []string{"k1:9092", "k2:9092"}
	if !reflect.DeepEqual(cfg.KafkaBrokers, want) {
		t.Errorf("KafkaBrokers = %v, want %v", cfg.KafkaBrokers, want)
	}
}

func TestLoad_InvalidOffsetFallsBack(t *testing.T) {
	t.Setenv("BUSINESS_UTC_OFFSET_HOURS", "eight")
	if got := Load().BusinessUTCOffsetHours; got != 8 {
		t.Errorf("BusinessUTCOffsetHours = %d, want 8", got)
	}
}
