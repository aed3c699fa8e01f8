package logs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aws/smithy-go/logging"
)

func TestNew_LevelFollowsVerbose(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false, true).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %q", buf.String())
	}

	New(&buf, true, true).Debug("shown", "group", "nsg-prod")
	out := buf.String()
	if !strings.Contains(out, "shown") || !strings.Contains(out, "group=nsg-prod") {
		t.Errorf("verbose logger output = %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("noColor output contains ANSI escapes: %q", out)
	}
}

func TestSDKLogger_WarnPassesAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := SDKLogger(New(&buf, false, true))
	l.Logf(logging.Debug, "retrying %d", 1)
	l.Logf(logging.Warn, "clock skew %s", "5m")

	out := buf.String()
	if strings.Contains(out, "retrying") {
		t.Errorf("debug SDK message leaked at info level: %q", out)
	}
	if !strings.Contains(out, "clock skew 5m") {
		t.Errorf("warn SDK message missing: %q", out)
	}
}
