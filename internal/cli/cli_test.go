package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/greencredits/greencredits/internal/daemon"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// sqliteHome returns a home directory configured for the SQLite backend.
func sqliteHome(t *testing.T) string {
	t.Helper()
	t.Setenv(daemon.EnvStorage, "")
	t.Setenv(daemon.EnvAddr, "")
	home := t.TempDir()
	cfg := daemon.DefaultConfig()
	cfg.Storage.Backend = daemon.BackendSQLite
	cfg.Storage.Dir = filepath.Join(home, "data")
	if err := daemon.Save(daemon.ConfigPath(home), cfg); err != nil {
		t.Fatal(err)
	}
	return home
}

func TestScore_JSON(t *testing.T) {
	out, err := run(t, "score", "--photo", "--lat", "12.97", "--lng", "77.59",
		"-d", "Overflowing garbage bin near the park", "-a", "MG Road, Bengaluru", "--json")
	if err != nil {
		t.Fatalf("score error: %v\n%s", err, out)
	}
	var got struct {
		Score int `json:"score"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Score != 100 {
		t.Errorf("score = %d, want 100", got.Score)
	}
}

func TestScore_BadCoordinate(t *testing.T) {
	if _, err := run(t, "score", "--lat", "north", "--json=false"); err == nil {
		t.Error("score accepted a non-numeric latitude")
	}
}

func TestBadges_ListsCatalog(t *testing.T) {
	out, err := run(t, "badges")
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"ECO_WARRIOR", "GREEN_CHAMPION", "STREAK_MASTER"} {
		if !strings.Contains(out, key) {
			t.Errorf("badges output missing %s:\n%s", key, out)
		}
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil || !strings.Contains(out, "greencredits "+Version) {
		t.Errorf("version = %q, %v", out, err)
	}
}

func TestOfflineCommands_RefuseMemoryBackend(t *testing.T) {
	t.Setenv(daemon.EnvStorage, "")
	home := t.TempDir()
	_, err := run(t, "--home", home, "leaderboard")
	if err == nil || !strings.Contains(err.Error(), "offline commands need") {
		t.Errorf("leaderboard on memory backend err = %v", err)
	}
}

func TestLedger_AwardShowLeaderboard(t *testing.T) {
	home := sqliteHome(t)

	out, err := run(t, "--home", home, "ledger", "award", "u1", "BADGE_BONUS", "--amount", "120")
	if err != nil {
		t.Fatalf("award error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Awarded 120 credits") || !strings.Contains(out, "Eco Warrior") {
		t.Errorf("award output:\n%s", out)
	}

	out, err = run(t, "--home", home, "ledger", "show", "u1")
	if err != nil {
		t.Fatalf("show error: %v", err)
	}
	if !strings.Contains(out, "Total:      170") {
		t.Errorf("show output:\n%s", out)
	}

	out, err = run(t, "--home", home, "ledger", "history", "u1")
	if err != nil {
		t.Fatalf("history error: %v", err)
	}
	if strings.Count(out, "BADGE_BONUS") != 2 {
		t.Errorf("history should list two BADGE_BONUS rows:\n%s", out)
	}

	out, err = run(t, "--home", home, "leaderboard")
	if err != nil {
		t.Fatalf("leaderboard error: %v", err)
	}
	if !strings.Contains(out, "Unknown") || !strings.Contains(out, "170") {
		t.Errorf("leaderboard output:\n%s", out)
	}

	if _, err := os.Stat(filepath.Join(home, "data")); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestLedger_Errors(t *testing.T) {
	home := sqliteHome(t)

	if _, err := run(t, "--home", home, "ledger", "award", "u1", "NOT_AN_ACTION"); err == nil {
		t.Error("award accepted an unknown action")
	}
	if _, err := run(t, "--home", home, "ledger", "multiplier", "--", "u1", "-2"); err == nil {
		t.Error("multiplier accepted a negative value")
	}
	if _, err := run(t, "--home", home, "ledger", "show", "ghost"); err == nil {
		t.Error("show accepted an unknown user")
	}
}
