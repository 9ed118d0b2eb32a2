package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/config"
	pebblestore "github.com/Chriisy/Myhrvoldgruppen-sub000/internal/storage/pebble"
)

func TestOpenCloseHealth(t *testing.T) {
	rt, err := Open(Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if rt.Config().Liveness.DeadlineMs != 60_000 {
		t.Fatalf("config not carried")
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
