package browser

import (
	"strings"
	"testing"
	"time"

	"github.com/Fennzo/CourtScrapper/internal/courts"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	if cfg.NavigationTimeout != 45*time.Second {
		t.Fatalf("expected default navigation timeout, got %v", cfg.NavigationTimeout)
	}
	if cfg.ActionTimeout != 10*time.Second {
		t.Fatalf("expected default action timeout, got %v", cfg.ActionTimeout)
	}

	cfg = Config{NavigationTimeout: time.Second}.withDefaults()
	if cfg.NavigationTimeout != time.Second {
		t.Fatalf("expected override to be used, got %v", cfg.NavigationTimeout)
	}
}

func TestNewFactoryRequiresBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := NewFactory(Config{}, nil); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}

func TestOpenCaseScriptQuotesCaseNumber(t *testing.T) {
	t.Parallel()

	script := openCaseScript(courts.CaseRow{Index: 3, CaseNumber: `F25-"1"`})
	if !strings.Contains(script, `"F25-\"1\""`) {
		t.Fatalf("case number not quoted safely:\n%s", script)
	}
	if !strings.Contains(script, "rows[3]") {
		t.Fatalf("row index fallback missing:\n%s", script)
	}
}

func TestSetPageSizeScriptEmbedsSize(t *testing.T) {
	t.Parallel()

	if script := setPageSizeScript(200); !strings.Contains(script, `"200"`) {
		t.Fatalf("size not embedded:\n%s", script)
	}
}

func TestClickByTextScriptQuotesPhrase(t *testing.T) {
	t.Parallel()

	if script := clickByTextScript(`Advanced "Options"`); !strings.Contains(script, `\"Options\"`) {
		t.Fatalf("phrase not quoted safely:\n%s", script)
	}
}
