package redis

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/mossy-p/call-signaling/config"
)

func newMirror(t *testing.T, srv *miniredis.Miniredis) *PresenceMirror {
	t.Helper()
	host, port, _ := net.SplitHostPort(srv.Addr())
	client, err := Connect(context.Background(), config.RedisConfig{Host: host, Port: port})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	m, err := NewPresenceMirror(context.Background(), client, "signaling:", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPresenceMirror: %v", err)
	}
	return m
}

func TestMirrorTracksOnlineSet(t *testing.T) {
	srv := miniredis.RunT(t)
	m := newMirror(t, srv)

	at := time.UnixMilli(1_700_000_000_000)
	m.Online("alice", at)
	m.Online("bob", at)
	m.Offline("bob", at.Add(time.Second))
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if ok, _ := srv.SIsMember("signaling:online", "alice"); !ok {
		t.Error("alice should be in the online set")
	}
	if ok, _ := srv.SIsMember("signaling:online", "bob"); ok {
		t.Error("bob should have left the online set")
	}
	want := strconv.FormatInt(at.Add(time.Second).UnixMilli(), 10)
	if got := srv.HGet("signaling:last_seen", "bob"); got != want {
		t.Errorf("bob last_seen = %q, want %q", got, want)
	}
}

func TestMirrorResetsStaleOnlineSet(t *testing.T) {
	srv := miniredis.RunT(t)
	srv.SAdd("signaling:online", "ghost")

	m := newMirror(t, srv)
	defer m.Close()

	if srv.Exists("signaling:online") {
		t.Error("online set from a previous process should be cleared")
	}
}

func TestMirrorIgnoresUpdatesAfterClose(t *testing.T) {
	srv := miniredis.RunT(t)
	m := newMirror(t, srv)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m.Online("late", time.Now())
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if srv.Exists("signaling:online") {
		t.Error("updates after Close must not reach Redis")
	}
}

func TestConnectFailure(t *testing.T) {
	srv := miniredis.RunT(t)
	host, port, _ := net.SplitHostPort(srv.Addr())
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Connect(ctx, config.RedisConfig{Host: host, Port: port}); err == nil {
		t.Fatal("Connect should fail when Redis is down")
	}
}
