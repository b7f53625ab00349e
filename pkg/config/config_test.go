package config

import (
	"testing"
	"time"
)

func TestSignalerDefaults(t *testing.T) {
	conf := NewSignalerConfig()
	if conf.Signaler.Server.Address != ":8000" {
		t.Fatalf("address %q", conf.Signaler.Server.Address)
	}
	if conf.Signaler.Rooms.IdleTimeout != 30*time.Minute {
		t.Fatalf("idle timeout %v", conf.Signaler.Rooms.IdleTimeout)
	}
	if conf.Turn.Realm != "snapbooth" || conf.Turn.TTL != time.Hour {
		t.Fatalf("turn defaults %+v", conf.Turn)
	}
}

func TestBoothDefaults(t *testing.T) {
	conf := NewBoothConfig()
	if conf.Booth.Signaler != "http://localhost:8000" {
		t.Fatalf("signaler %q", conf.Booth.Signaler)
	}
	s := conf.Booth.Session
	if s.MaxRetries != 3 || s.RetryBackoff != 2*time.Second || s.PollInterval != time.Second {
		t.Fatalf("session defaults %+v", s)
	}
	if len(conf.Webrtc.IceServers) == 0 {
		t.Fatal("no default ICE server")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SNAPBOOTH_TURN_SECRET", "from-env")
	t.Setenv("SNAPBOOTH_SIGNALER_SERVER_ADDRESS", ":9001")

	conf := NewSignalerConfig()
	if err := LoadConfigEnv(&conf); err != nil {
		t.Fatal(err)
	}
	if conf.Turn.Secret != "from-env" {
		t.Fatalf("secret %q", conf.Turn.Secret)
	}
	if conf.Signaler.Server.Address != ":9001" {
		t.Fatalf("address %q", conf.Signaler.Server.Address)
	}
}

func TestServerGetAddr(t *testing.T) {
	s := Server{Address: ":8000"}
	s.Tls.Address = ":443"
	if s.GetAddr() != ":8000" {
		t.Fatalf("plain addr %q", s.GetAddr())
	}
	s.Https = true
	if s.GetAddr() != ":443" {
		t.Fatalf("tls addr %q", s.GetAddr())
	}
}
