package main

import (
	"strings"
	"testing"

	"buildwatch/internal/auth"
)

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error without ntfy topic")
	}
	requireContains(t, out, "ntfy topic not configured")
}

func TestAlertsToggleUnsupportedWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"alerts", "off"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected alerts toggle to fail without a delivery service")
	}
}

func TestTokenCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"token", "--subject", "dashboard"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	claims, err := auth.ValidateToken(testAPISecret, strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != "dashboard" || claims.Scope != auth.ScopeAPI {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestCommandsFailWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"pipeline", "rm", "x"}, env.socketPath+".missing", env.configPath)
	if err == nil || !strings.Contains(err.Error(), "buildwatch start") {
		t.Fatalf("expected dial hint, got %v", err)
	}
}
